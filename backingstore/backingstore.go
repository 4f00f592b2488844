// Package backingstore is a simulated disk implementing the
// BackingStoreCallbacks external trait (spec §2.2, §6): acquire/release
// around a lazy write, and the write itself. It exists so tests and a
// runnable example can exercise viewcache.FlushDirty end to end without
// a real filesystem underneath.
//
// Adapted from biscuit/src/fs/blk.go (Bdev_block_t,
// Bdev_req_t, Disk_i, the BDEV_WRITE/BDEV_READ/BDEV_FLUSH command
// enum): that file models one in-flight disk request per block with a
// synchronous or asynchronous completion channel. Here one simulated
// disk models one in-flight write per file offset, and failures are
// injectable for the error-path tests spec §8/§4.3 call for
// (end_of_file, media_write_protected, and arbitrary others).
package backingstore

import (
	"sync"

	"viewkern/defs"
)

// Bdevcmd_t enumerates the command types the simulated disk accepts,
// mirroring biscuit's Bdevcmd_t enum.
type Bdevcmd_t uint

const (
	BDEV_WRITE Bdevcmd_t = 1
	BDEV_READ  Bdevcmd_t = 2
	BDEV_FLUSH Bdevcmd_t = 3
)

// Write records one write_region call for test assertions (spec
// scenario 1: "backing-store callback receives one write for offset
// 0").
type Write struct {
	Offset int64
	Length int
}

// Disk simulates a backing store: writes succeed unless an injected
// fault says otherwise, and every write is recorded for inspection.
type Disk struct {
	mu sync.Mutex

	writable    bool
	writes      []Write
	faultOffset map[int64]defs.Err_t

	// lazyBusy simulates AcquireForLazyWrite refusing concurrent lazy
	// writers on the same file, as CcCanIWrite does in the original.
	lazyBusy bool
}

// NewDisk constructs a writable simulated disk with no injected faults.
func NewDisk() *Disk {
	return &Disk{writable: true, faultOffset: make(map[int64]defs.Err_t)}
}

// SetWriteProtected makes every future write_region call fail with
// media_write_protected, for exercising spec §4.3's write-protected
// error path.
func (d *Disk) SetWriteProtected(wp bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writable = !wp
}

// InjectFault makes the next write_region at offset fail with err.
func (d *Disk) InjectFault(offset int64, err defs.Err_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faultOffset[offset] = err
}

// WriteRegion is the write_region(vacb) -> status callback (spec §6).
func (d *Disk) WriteRegion(offset int64, data []byte) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.writable {
		return defs.EWRITEPROTECT
	}
	if err, ok := d.faultOffset[offset]; ok {
		delete(d.faultOffset, offset)
		return err
	}
	d.writes = append(d.writes, Write{Offset: offset, Length: len(data)})
	return defs.Ok
}

// Writes returns a snapshot of every write_region call observed so far.
func (d *Disk) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Write, len(d.writes))
	copy(out, d.writes)
	return out
}

// AcquireForLazyWrite is acquire_for_lazy_write(ctx, wait) -> bool (spec
// §6). It refuses concurrent lazy writers on the same disk unless wait
// is set, matching the original's CcCanIWrite semantics closely enough
// to exercise flush_dirty's refusal path (spec §4.1.1 step 2).
func (d *Disk) AcquireForLazyWrite(wait bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lazyBusy && !wait {
		return false
	}
	d.lazyBusy = true
	return true
}

// ReleaseFromLazyWrite is release_from_lazy_write(ctx) (spec §6).
func (d *Disk) ReleaseFromLazyWrite() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lazyBusy = false
}
