package items

import (
	"fmt"
	"strings"

	"c1gen/src/backend/regfile"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// CachedLocals maps local variable indices to the registers caching them.
type CachedLocals struct {
	mapping []regfile.RInfo // Cache register per local, NoReg if not cached.
	oops    []bool          // Locals holding object references.
}

// BlockItem describes the locals cached in registers on entry to a block. Blocks sharing a loop share the same
// BlockItem.
type BlockItem struct {
	CachedLocals
	lockout  regfile.RegMask // Registers reserved for the cached locals.
	is32bit  bool            // Floating point arithmetic runs in single precision.
	receiver bool            // The item caches the receiver in local 0.
}

// ---------------------
// ----- Functions -----
// ---------------------

// CacheLocal records that local index is cached in reg.
func (c *CachedLocals) CacheLocal(index int, reg regfile.RInfo, isOop bool) {
	for len(c.mapping) <= index {
		c.mapping = append(c.mapping, regfile.NoReg)
		c.oops = append(c.oops, false)
	}
	c.mapping[index] = reg
	c.oops[index] = isOop
}

// CacheReg returns the register caching local index, NoReg if the local is not cached.
func (c *CachedLocals) CacheReg(index int) regfile.RInfo {
	if c == nil || index < 0 || index >= len(c.mapping) {
		return regfile.NoReg
	}
	return c.mapping[index]
}

// IsLocalCached returns true if local index is cached.
func (c *CachedLocals) IsLocalCached(index int) bool {
	return c.CacheReg(index).IsValid()
}

// IsOop returns true if local index is cached and holds an object reference.
func (c *CachedLocals) IsOop(index int) bool {
	return c != nil && index >= 0 && index < len(c.oops) && c.oops[index]
}

// Len returns one past the highest mapped local.
func (c *CachedLocals) Len() int {
	return len(c.mapping)
}

// Registers returns the cache registers of all cached locals in ascending local order.
func (c *CachedLocals) Registers() []regfile.RInfo {
	var res []regfile.RInfo
	for _, e1 := range c.mapping {
		if e1.IsValid() {
			res = append(res, e1)
		}
	}
	return res
}

// OopRegisters returns the cache registers holding object references.
func (c *CachedLocals) OopRegisters() []regfile.RInfo {
	var res []regfile.RInfo
	for i1, e1 := range c.mapping {
		if e1.IsValid() && c.oops[i1] {
			res = append(res, e1)
		}
	}
	return res
}

// NewBlockItem returns a BlockItem caching nothing.
func NewBlockItem(lockout regfile.RegMask, is32bit bool) *BlockItem {
	return &BlockItem{lockout: lockout, is32bit: is32bit}
}

// NewReceiverItem returns the BlockItem caching the receiver in local 0.
func NewReceiverItem() *BlockItem {
	bi := NewBlockItem(regfile.MaskOf(regfile.Recv), false)
	bi.CacheLocal(0, regfile.Recv, true)
	bi.receiver = true
	return bi
}

// SetLockout sets the registers reserved for the cached locals.
func (bi *BlockItem) SetLockout(mask regfile.RegMask) {
	bi.lockout = mask
}

// Lockout returns the registers reserved for the cached locals.
func (bi *BlockItem) Lockout() regfile.RegMask {
	return bi.lockout
}

// Set32bitPrecision sets the floating point precision of the blocks.
func (bi *BlockItem) Set32bitPrecision(v bool) {
	bi.is32bit = v
}

// Is32bitPrecision returns true if floating point arithmetic runs in single precision.
func (bi *BlockItem) Is32bitPrecision() bool {
	return bi.is32bit
}

// IsReceiver returns true if bi caches the receiver.
func (bi *BlockItem) IsReceiver() bool {
	return bi.receiver
}

// String lists the cached locals of bi.
func (bi *BlockItem) String() string {
	sb := strings.Builder{}
	sb.WriteString("[")
	for i1, e1 := range bi.mapping {
		if !e1.IsValid() {
			continue
		}
		if sb.Len() > 1 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("L%d->%s", i1, e1))
	}
	sb.WriteString(fmt.Sprintf("] lockout=%s", bi.lockout))
	if bi.is32bit {
		sb.WriteString(" fp32")
	}
	return sb.String()
}
