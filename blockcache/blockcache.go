// Package blockcache implements the translated-block cache described in
// spec §4.6: a monotonically-growing arena of basic blocks keyed by
// (physical PC, MSR), with a most-recently-used one-entry shortcut and a
// generation counter for invalidation, grounded on
// original_source/blockstore.h and blockstore.cc. The "translated" block
// here is a decoded instruction-word slice executed by a threaded
// dispatch loop straight through interp's semantic routines -- the spec
// explicitly permits this backend (a real native code generator is not
// required).
package blockcache

import "github.com/mattrisc/iss/arch"

// maxBlocks bounds the arena before a full reset is forced -- the
// original's "fumes" reserve: once the backing store gets close to full,
// everything is thrown away rather than evicting piecemeal.
const maxBlocks = 4096

// key identifies a block by physical start address and the MSR bits that
// affect translation/endianness (IR/DR/PR/LE), matching the original's
// rationale that the same code translates differently under different
// MSR states.
type key struct {
	pa  uint32
	msr uint32
}

func keyFor(pa uint32, msr uint32) key {
	return key{pa: pa, msr: msr & (arch.MsrIR | arch.MsrDR | arch.MsrPR | arch.MsrLE)}
}

// Block is a cached run of instruction words starting at a physical
// address, ending at the instruction that terminated the run (a
// control-flow instruction, a page-boundary crossing, or the per-block
// instruction limit).
type Block struct {
	PA         uint32
	MSR        uint32
	Words      []uint32
	generation uint32
}

// Cache is the block store: a hash map plus a last-block shortcut, reset
// en masse when either the arena fills or the MMU's translation
// generation changes underneath it (a stale block could otherwise
// reference a PA that no longer maps the same guest page).
type Cache struct {
	blocks     map[key]*Block
	mostRecent *Block
	mruKey     key
	generation uint32
}

// New creates an empty block cache.
func New() *Cache {
	return &Cache{blocks: make(map[key]*Block)}
}

// Generation returns the cache's own invalidation generation -- bumped by
// every Reset, so callers can tell whether the cache has been discarded
// since they last looked.
func (c *Cache) Generation() uint32 { return c.generation }

// Lookup returns the cached block for (pa, msr), trying the single-entry
// MRU shortcut before the full map, per spec §4.6.
func (c *Cache) Lookup(pa uint32, msr uint32) (*Block, bool) {
	k := keyFor(pa, msr)
	if c.mostRecent != nil && c.mruKey == k {
		return c.mostRecent, true
	}
	b, ok := c.blocks[k]
	if ok {
		c.mostRecent, c.mruKey = b, k
	}
	return b, ok
}

// Insert adds a freshly translated block, resetting the whole arena first
// if it has grown past maxBlocks (the "fumes" policy: discard everything
// rather than track per-block liveness).
func (c *Cache) Insert(b *Block) {
	if len(c.blocks) >= maxBlocks {
		c.Reset()
	}
	k := keyFor(b.PA, b.MSR)
	b.generation = c.generation
	c.blocks[k] = b
	c.mostRecent, c.mruKey = b, k
}

// Reset discards every cached block. The runloop calls this on icbi /
// IC_INV_SET and on an MMU generation change, and Insert calls it when the
// arena is full, rather than attempt fine-grained invalidation, matching the
// original's coarse invalidate-everything policy. Stores into a cached PA
// range are not detected.
func (c *Cache) Reset() {
	c.blocks = make(map[key]*Block)
	c.mostRecent = nil
	c.generation++
}

// Len reports how many blocks are currently cached, used by state-save
// diagnostics and tests.
func (c *Cache) Len() int { return len(c.blocks) }
