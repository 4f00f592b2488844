package gdiobj

import "sync/atomic"

// freeListEnd marks "no next" on the free list (kernel_data == 0 means
// empty per spec §3.5; we reserve index 0 as the sentinel-and-never-
// allocated first reserved slot, so 0 safely doubles as "end").
const freeListEnd = uint32(0)

// ObjectTable is the fixed-size slot array (spec §3.5). Indices
// [0, ReservedEntryCount) are never allocated.
type ObjectTable struct {
	slots        []HandleSlot
	reserved     uint32
	firstFree    uint32 // atomic: head of the free-list stack, 0 = empty
	firstUnused  uint32 // atomic: bump pointer for never-touched slots
}

// NewObjectTable builds a table of size entries, reserving the first
// reservedCount indices.
func NewObjectTable(size, reservedCount int) *ObjectTable {
	t := &ObjectTable{
		slots:       make([]HandleSlot, size),
		reserved:    uint32(reservedCount),
		firstUnused: uint32(reservedCount),
	}
	return t
}

func (t *ObjectTable) size() uint32 { return uint32(len(t.slots)) }

func (t *ObjectTable) slot(idx uint32) *HandleSlot { return &t.slots[idx] }

// popFree implements spec §4.2.2's non-blocking pop: read first_free;
// if zero, bump first_unused; else lock the candidate, load its next,
// CAS first_free from old to next, unlock.
func (t *ObjectTable) popFree() (idx uint32, ok bool) {
	for {
		head := atomic.LoadUint32(&t.firstFree)
		if head == freeListEnd {
			for {
				cur := atomic.LoadUint32(&t.firstUnused)
				if cur >= t.size() {
					return 0, false
				}
				if atomic.CompareAndSwapUint32(&t.firstUnused, cur, cur+1) {
					return cur, true
				}
			}
		}

		slot := t.slot(head)
		if _, locked := slot.tryLock(); !locked {
			continue // someone else is mutating this slot; retry from the top
		}
		next := slot.nextFree
		if atomic.CompareAndSwapUint32(&t.firstFree, head, next) {
			slot.unlock(0)
			return head, true
		}
		// Lost the race to another popper; unlock and retry.
		slot.unlock(0)
	}
}

// pushFree implements spec §4.2.2's push: write the old first_free
// into the slot's kernel_data and CAS-install the slot as the new
// head. Caller must already hold idx's slot lock and have cleared its
// base type to zero.
func (t *ObjectTable) pushFree(idx uint32) {
	for {
		head := atomic.LoadUint32(&t.firstFree)
		t.slot(idx).nextFree = head
		if atomic.CompareAndSwapUint32(&t.firstFree, head, idx) {
			return
		}
	}
}

// occupied reports the number of slots currently allocated, for
// metrics (handles_in_use / handles_free).
func (t *ObjectTable) occupied() (inUse, free int) {
	total := 0
	for i := t.reserved; i < t.size(); i++ {
		if !t.slots[i].isFree() {
			total++
		}
	}
	return total, int(t.size()-t.reserved) - total
}
