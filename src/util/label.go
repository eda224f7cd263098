// label.go provides assembler label names that stay unique when the listings
// of several methods end up in one output file.

package util

import (
	"fmt"
	"strings"
)

// ---------------------
// ----- Constants -----
// ---------------------

// labelPrefix starts every generated label.
const labelPrefix = "_L"

// -------------------
// ----- globals -----
// -------------------

// labelReplacer maps characters assemblers reject in symbols.
var labelReplacer = strings.NewReplacer(
	".", "_",
	"/", "_",
	"$", "_",
	"<", "_",
	">", "_",
	"(", "_",
	")", "_",
	";", "_",
	" ", "_",
)

// ---------------------
// ----- functions -----
// ---------------------

// Symbol returns name with the characters not allowed in assembler symbols replaced.
func Symbol(name string) string {
	return labelReplacer.Replace(name)
}

// NewLabel returns the label of block in method.
func NewLabel(method, block string) string {
	return fmt.Sprintf("%s%s_%s", labelPrefix, Symbol(method), block)
}
