package emit

import (
	"c1gen/src/backend/items"
	"c1gen/src/ir/hir"
)

// Discard is an Encoder dropping every call. Dry runs generate into it to measure register and spill pressure.
type Discard struct{}

func (Discard) Label(*hir.Block, bool) {}
func (Discard) Move(_, _ *items.Item) {}
func (Discard) Spill(int, *items.Item) {}
func (Discard) Push(*items.Item) {}
func (Discard) Pop(*items.Item) {}
func (Discard) Emit(*Instr) {}
