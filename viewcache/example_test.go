package viewcache_test

import (
	"context"
	"fmt"

	"viewkern/backingstore"
	"viewkern/defs"
	"viewkern/fileobj"
	"viewkern/mem"
	"viewkern/tunables"
	"viewkern/viewcache"
)

// exampleCallbacks adapts a backingstore.Disk to viewcache.Callbacks,
// the same shape a real filesystem driver would supply in production.
type exampleCallbacks struct {
	disk *backingstore.Disk
}

func (c exampleCallbacks) AcquireForLazyWrite(ctx interface{}, wait bool) bool {
	return c.disk.AcquireForLazyWrite(wait)
}

func (c exampleCallbacks) ReleaseFromLazyWrite(ctx interface{}) {
	c.disk.ReleaseFromLazyWrite()
}

func (c exampleCallbacks) WriteRegion(ctx interface{}, fileOffset int64, v *viewcache.VACB) error {
	if err := c.disk.WriteRegion(fileOffset, make([]byte, 4096)); err != defs.Ok {
		return fmt.Errorf("write_region: %s", err)
	}
	return nil
}

// Example demonstrates the request, dirty-release and flush steps of
// spec §8 scenario 1 against a simulated disk instead of a real file.
func Example() {
	provider := mem.NewMmapProvider()

	vc := viewcache.Init(tunables.DefaultConfig(), provider)
	disk := backingstore.NewDisk()
	cb := exampleCallbacks{disk: disk}

	f := fileobj.New()
	scMap, _ := vc.InitializeFileCache(f, viewcache.Sizes{AllocationSize: 1 << 20, FileSize: 1 << 20}, cb, nil)

	v, _, _ := vc.RequestRegion(scMap, 0)
	vc.ReleaseRegion(scMap, v, true, true, false)

	if _, err := vc.FlushDirty(context.Background(), 1024, false); err != nil {
		fmt.Println("flush failed:", err)
		return
	}
	fmt.Println("dirty after flush:", v.Dirty())
	fmt.Println("writes recorded:", len(disk.Writes()))

	// Output:
	// dirty after flush: false
	// writes recorded: 1
}
