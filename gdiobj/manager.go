package gdiobj

import (
	"fmt"

	"viewkern/caller"
	"viewkern/defs"
	"viewkern/metrics"
	"viewkern/procacct"
	"viewkern/tinfo"
)

var gdi_debug = false

func gdi_debugf(format string, args ...interface{}) {
	if gdi_debug {
		fmt.Printf("gdiobj: "+format+"\n", args...)
	}
}

// contentionPaths dedupes the lock_object contention-exhaustion log
// line by call site, so a hot handle spinning out under load doesn't
// flood the log once per retry.
var contentionPaths = &caller.Distinct_caller_t{Enabled: true}

// Well-known type tags, supplemented from original_source/gdiobj.c's
// GDI object taxonomy (spec §4.2's cleanup_process priority list names
// DC, BRUSH, BITMAP explicitly).
const (
	TypeDC TypeTag = iota + 1
	TypeBrush
	TypeBitmap
	TypePen
	TypeRegion
	TypeFont
	TypePalette
)

// cleanupOrder is the type priority cleanup_process walks in (spec
// §4.2 / §8 scenario 6): DC before BRUSH before BITMAP before
// everything else.
var cleanupOrder = []TypeTag{TypeDC, TypeBrush, TypeBitmap}

// ObjectManager is the allocator/locker/reclaimer over one
// ObjectTable (spec §4.2).
type ObjectManager struct {
	table  *ObjectTable
	types  *TypeTable
	ledger *procacct.Ledger
}

// NewObjectManager builds a manager over a fresh table of the given
// size, reserving reservedCount low indices.
func NewObjectManager(size, reservedCount int, types *TypeTable, ledger *procacct.Ledger) *ObjectManager {
	m := &ObjectManager{
		table:  NewObjectTable(size, reservedCount),
		types:  types,
		ledger: ledger,
	}
	return m
}

// AllocObjectWithHandle allocates a body of typ, returning it with
// ExclusiveLockDepth == 1 (spec §4.2: "the caller owns the initial
// exclusive lock").
func (m *ObjectManager) AllocObjectWithHandle(typ TypeTag, owner defs.Pid_t, caller tinfo.Tid_t) (Body, bool) {
	info, ok := m.types.lookup(typ)
	if !ok {
		defs.BugCheck("gdiobj: alloc_object_with_handle: unregistered type %d", typ)
	}

	body := info.New()
	base := body.Base()

	idx, ok := m.table.popFree()
	if !ok {
		gdi_debugf("alloc_object_with_handle: out of handles for type %d", typ)
		return nil, false
	}

	if m.ledger != nil && !m.ledger.TryIncrement(owner) {
		// Out-of-handles per the per-process cap: return the slot we
		// just popped and the body we just built (spec §4.3: "returns
		// null from alloc_object_with_handle after freeing the
		// already-allocated body").
		slot := m.table.slot(idx)
		if _, locked := slot.tryLock(); locked {
			m.table.pushFree(idx)
			slot.unlock(0)
		}
		return nil, false
	}

	slot := m.table.slot(idx)
	reuse := slot.reuseCounter()
	slot.typeWord = composeTypeWord(typ, false, reuse)
	slot.body = body

	base.ExclusiveLockDepth = 1
	base.OwningTid = caller
	base.handle = makeHandle(idx, typ, false, reuse)

	slot.unlock(owner)

	metrics.HandlesInUse.Inc()
	gdi_debugf("alloc_object_with_handle type=%d handle=%#x owner=%d", typ, base.handle, owner)
	return body, true
}

// ValidateHandle is the stateless fast-path check (spec §4.2 /
// validate_handle): index in range, type and reuse counter match, and
// owner is current or global.
func (m *ObjectManager) ValidateHandle(h Handle, expected TypeTag, current defs.Pid_t) bool {
	idx := h.index()
	if idx >= m.table.size() {
		return false
	}
	slot := m.table.slot(idx)
	bt := slot.baseType()
	if bt == 0 || bt != h.baseType() {
		return false
	}
	if slot.reuseCounter() != h.reuse() {
		return false
	}
	if expected != DontCare && expected != bt {
		return false
	}
	owner := slot.ownerPid()
	if owner != 0 && owner != current {
		return false
	}
	return true
}

// lockedBody validates h under the slot lock and returns the body and
// slot, leaving the slot locked on success. Caller must unlock.
func (m *ObjectManager) lockedBody(h Handle, expected TypeTag) (*HandleSlot, Body, bool) {
	idx := h.index()
	if idx >= m.table.size() {
		return nil, nil, false
	}
	slot := m.table.slot(idx)
	if _, ok := slot.tryLock(); !ok {
		return nil, nil, false
	}
	bt := slot.baseType()
	if bt == 0 || bt != h.baseType() || slot.reuseCounter() != h.reuse() {
		slot.unlock(slot.ownerPid())
		return nil, nil, false
	}
	if expected != DontCare && expected != bt {
		slot.unlock(slot.ownerPid())
		return nil, nil, false
	}
	return slot, slot.body, true
}

// LockObject acquires the exclusive, reentrant-by-thread lock (spec
// §4.2 / lock_object).
func (m *ObjectManager) LockObject(h Handle, expected TypeTag, tid tinfo.Tid_t) Body {
	backoff := &tinfo.Backoff{}
	for {
		slot, body, ok := m.lockedBody(h, expected)
		if !ok {
			gdi_debugf("lock_object: invalid handle %#x", h)
			return nil
		}
		base := body.Base()
		owner := slot.ownerPid()
		switch {
		case base.ExclusiveLockDepth == 0:
			base.ExclusiveLockDepth = 1
			base.OwningTid = tid
			slot.unlock(owner)
			return body
		case base.OwningTid == tid:
			base.ExclusiveLockDepth++
			slot.unlock(owner)
			return body
		default:
			slot.unlock(owner)
			if !backoff.Spin() {
				if fresh, trace := contentionPaths.Distinct(); fresh {
					gdi_debugf("lock_object: contention budget exhausted for %#x\n%s", h, trace)
				}
				return nil
			}
		}
	}
}

// UnlockObject releases one level of the exclusive lock (spec §4.2 /
// unlock_object); never goes below zero.
func (m *ObjectManager) UnlockObject(body Body) {
	base := body.Base()
	if base.ExclusiveLockDepth > 0 {
		base.ExclusiveLockDepth--
	}
}

// ShareLockObject acquires a shared lock (spec §4.2 / share_lock_object).
func (m *ObjectManager) ShareLockObject(h Handle, expected TypeTag) Body {
	slot, body, ok := m.lockedBody(h, expected)
	if !ok {
		return nil
	}
	base := body.Base()
	base.ShareCount++
	slot.unlock(slot.ownerPid())
	return body
}

// ShareUnlock releases a shared lock, completing a deferred free if
// ready_to_die was set while shared (spec §4.2 / share_unlock).
func (m *ObjectManager) ShareUnlock(h Handle, body Body) {
	base := body.Base()
	if base.ShareCount > 0 {
		base.ShareCount--
	}
	if base.ShareCount == 0 && base.readyToDie() {
		m.destroy(h, body)
	}
}

// FreeByHandle implements spec §4.2 / free_by_handle: the body must be
// unlocked (shared == 0, exclusive == 0 or exclusive held by caller).
func (m *ObjectManager) FreeByHandle(h Handle, expected TypeTag, silent bool, caller tinfo.Tid_t) bool {
	slot, body, ok := m.lockedBody(h, expected)
	if !ok {
		if !silent {
			defs.BugCheck("gdiobj: free_by_handle: invalid handle %#x", h)
		}
		return false
	}
	if slot.stockFlag() {
		defs.BugCheck("gdiobj: free_by_handle: attempt to free stock object %#x", h)
	}

	base := body.Base()
	owner := slot.ownerPid()

	if base.ShareCount > 0 {
		base.setReadyToDie()
		slot.unlock(owner)
		return false
	}
	if base.ExclusiveLockDepth > 0 && base.OwningTid != caller {
		base.setReadyToDie()
		slot.unlock(owner)
		return false
	}

	slot.unlock(owner)
	m.destroy(h, body)
	return true
}

// destroy performs the irreversible tail of free_by_handle /
// share_unlock: mark the slot free, push it, clear the body's handle,
// decrement accounting, and run the type's cleanup.
func (m *ObjectManager) destroy(h Handle, body Body) {
	idx := h.index()
	slot := m.table.slot(idx)

	owner, locked := slot.tryLock()
	for !locked {
		owner, locked = slot.tryLock()
	}
	reuse := (slot.reuseCounter() + 1) % reuseModulus
	slot.typeWord = composeTypeWord(0, false, reuse)
	slot.body = nil
	m.table.pushFree(idx)
	slot.unlock(0)

	base := body.Base()
	base.handle = 0

	if m.ledger != nil {
		m.ledger.Decrement(owner)
	}
	metrics.HandlesInUse.Dec()

	if info, ok := m.types.lookup(h.baseType()); ok && info.Cleanup != nil {
		info.Cleanup(body)
	}
	gdi_debugf("destroy handle=%#x type=%d", h, h.baseType())
}

// ConvertToStock sets the stock-object bit and globalizes ownership
// (spec §4.2 / convert_to_stock). *h is rewritten to carry the stock
// bit; idempotent.
func (m *ObjectManager) ConvertToStock(h *Handle) bool {
	idx := h.index()
	slot := m.table.slot(idx)
	owner, ok := slot.tryLock()
	if !ok {
		return false
	}
	bt := slot.baseType()
	if bt == 0 || bt != h.baseType() || slot.reuseCounter() != h.reuse() {
		slot.unlock(owner)
		return false
	}
	reuse := slot.reuseCounter()
	slot.typeWord = composeTypeWord(bt, true, reuse)
	slot.unlock(0)

	*h = makeHandle(idx, bt, true, reuse)
	return true
}

// SetOwnership reassigns a slot's owner (spec §4.2 / set_ownership).
func (m *ObjectManager) SetOwnership(h Handle, newOwner defs.Pid_t) bool {
	idx := h.index()
	slot := m.table.slot(idx)
	oldOwner, ok := slot.tryLock()
	if !ok {
		return false
	}
	if slot.isFree() || slot.baseType() != h.baseType() {
		slot.unlock(oldOwner)
		return false
	}
	slot.unlock(newOwner)

	if m.ledger != nil {
		m.ledger.Decrement(oldOwner)
		m.ledger.TryIncrement(newOwner)
	}
	return true
}

// CopyOwnership sets to's owner to from's current owner, read under
// from's slot lock (spec §4.2 / copy_ownership).
func (m *ObjectManager) CopyOwnership(from, to Handle) bool {
	fromSlot := m.table.slot(from.index())
	owner, ok := fromSlot.tryLock()
	if !ok {
		return false
	}
	fromSlot.unlock(owner)
	return m.SetOwnership(to, owner)
}

// OwnedByCurrentProcess reports whether h's slot owner matches current.
func (m *ObjectManager) OwnedByCurrentProcess(h Handle, current defs.Pid_t) bool {
	idx := h.index()
	if idx >= m.table.size() {
		return false
	}
	return m.table.slot(idx).ownerPid() == current
}

// CleanupForProcess frees every handle owned by pid, in type-priority
// order (spec §4.2 / cleanup_process, §8 scenario 6): DC, then BRUSH,
// then BITMAP, then everything else, so dependent types never
// outlive their owners during teardown.
func (m *ObjectManager) CleanupForProcess(pid defs.Pid_t) {
	freeMatching := func(want func(TypeTag) bool) {
		for i := m.table.reserved; i < m.table.size(); i++ {
			slot := m.table.slot(i)
			if slot.isFree() || slot.ownerPid() != pid {
				continue
			}
			bt := slot.baseType()
			if !want(bt) {
				continue
			}
			h := makeHandle(i, bt, slot.stockFlag(), slot.reuseCounter())
			m.FreeByHandle(h, DontCare, true, tinfo.NoTid)
		}
	}

	for _, t := range cleanupOrder {
		target := t
		freeMatching(func(bt TypeTag) bool { return bt == target })
	}
	isPriority := func(bt TypeTag) bool {
		for _, t := range cleanupOrder {
			if bt == t {
				return true
			}
		}
		return false
	}
	freeMatching(func(bt TypeTag) bool { return !isPriority(bt) })

	if m.ledger != nil {
		m.ledger.Forget(pid)
	}
}

// Occupied reports handle-table occupancy for metrics wiring.
func (m *ObjectManager) Occupied() (inUse, free int) { return m.table.occupied() }
