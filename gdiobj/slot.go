package gdiobj

import (
	"sync/atomic"

	"viewkern/defs"
)

// lockBit is the low bit of owner (spec §4.2.1): set while a single
// actor is mid-transition on the slot.
const lockBit = uint32(1)

// HandleSlot is one cell of the object table (spec §3.4).
type HandleSlot struct {
	// owner packs the owning process id (defs.Pid_t, shifted left one
	// bit) with the lock flag in bit 0.
	owner uint32

	// typeWord packs baseType (bits 0:6), the stock flag (bit 6), and
	// the reuse counter (bits 7:16). baseType == 0 means the slot is
	// free (spec §3.4 invariant (b)).
	typeWord uint32

	body Body

	// nextFree is kernel_data's free-list-index meaning: valid only
	// while the slot is free (spec §3.4 invariant (a): "free list is
	// singly linked through kernel_data of free slots").
	nextFree uint32
}

func (s *HandleSlot) baseType() TypeTag { return TypeTag(atomic.LoadUint32(&s.typeWord) & handleTypeMask) }

func (s *HandleSlot) isFree() bool { return s.baseType() == 0 }

func (s *HandleSlot) stockFlag() bool {
	return (atomic.LoadUint32(&s.typeWord)>>handleTypeBits)&1 != 0
}

func (s *HandleSlot) reuseCounter() uint32 {
	return (atomic.LoadUint32(&s.typeWord) >> handleReuseShift0) & handleReuseMask
}

// handleReuseShift0 is the in-slot reuse-counter shift. It differs
// from handleReuseShift (the in-Handle shift) because the slot's
// typeWord has no index field to make room for.
const handleReuseShift0 = handleTypeBits + 1

func composeTypeWord(baseType TypeTag, stock bool, reuse uint32) uint32 {
	w := uint32(baseType) & handleTypeMask
	if stock {
		w |= 1 << handleTypeBits
	}
	w |= (reuse & handleReuseMask) << handleReuseShift0
	return w
}

// tryLock attempts the CAS owner -> owner|lockBit described in spec
// §4.2.1. Returns the pre-lock owner value (without the lock bit) on
// success.
func (s *HandleSlot) tryLock() (pid defs.Pid_t, ok bool) {
	cur := atomic.LoadUint32(&s.owner)
	if cur&lockBit != 0 {
		return 0, false
	}
	if !atomic.CompareAndSwapUint32(&s.owner, cur, cur|lockBit) {
		return 0, false
	}
	return defs.Pid_t(cur >> 1), true
}

// unlock writes newOwner back with the lock bit cleared, releasing the
// slot.
func (s *HandleSlot) unlock(newOwner defs.Pid_t) {
	atomic.StoreUint32(&s.owner, uint32(newOwner)<<1)
}

func (s *HandleSlot) ownerPid() defs.Pid_t {
	return defs.Pid_t(atomic.LoadUint32(&s.owner) >> 1)
}
