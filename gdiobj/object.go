package gdiobj

import "viewkern/tinfo"

// flag bits for BaseObject.Flags.
const (
	FlagReadyToDie uint32 = 1 << 0
)

// BaseObject is the common header every tracked body embeds as its
// first field (spec §3.6). Bodies implement Body so the manager can
// reach the header without unsafe pointer arithmetic.
type BaseObject struct {
	handle             Handle
	ExclusiveLockDepth int32
	ShareCount         int32
	OwningTid          tinfo.Tid_t
	Flags              uint32
}

// Body is implemented by every object type the manager can allocate.
// Base must return a pointer to the BaseObject embedded in the
// concrete type, never a copy.
type Body interface {
	Base() *BaseObject
}

// Handle returns the object's current handle, or zero if the body has
// been detached from its slot (spec §3.6: "NULL when body is detached").
func (b *BaseObject) Handle() Handle { return b.handle }

func (b *BaseObject) readyToDie() bool { return b.Flags&FlagReadyToDie != 0 }
func (b *BaseObject) setReadyToDie()   { b.Flags |= FlagReadyToDie }
