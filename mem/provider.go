// Package mem implements the VirtualMemoryProvider external trait (spec
// §2, "~0 LOC, interface only"): allocating page-sized backing, creating
// a kernel mapping of a fixed granularity, and paging individual frames
// out. The view cache only ever calls through the Provider interface,
// never touches a page table directly.
//
// The allocator boundary takes its shape from biscuit's mem.Physmem_t
// (biscuit/src/mem/mem.go). The default provider below keeps no free
// list: it records each live mmap region in a mutex-guarded map keyed
// by base address and unmaps it on release.
package mem

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Pa_t is an opaque "physical address" token: in this adaptation, the
// index of an anonymous mmap region the Provider has handed out.
type Pa_t uintptr

// Provider is the VirtualMemoryProvider external collaborator (spec
// §2.1). request_region/trim_cache consume it through this interface
// only.
type Provider interface {
	// CreateMappedRegion allocates and maps granularity bytes of fresh
	// backing, returning its kernel-visible base address.
	CreateMappedRegion(granularity int) (base uintptr, err error)
	// ReleasePage unmaps and frees a previously created region.
	ReleasePage(base uintptr, granularity int)
	// PageOut evicts the frame at base (advisory: MADV_DONTNEED), without
	// releasing the mapping's virtual address reservation.
	PageOut(base uintptr, length int) error
}

// mmapProvider is the default Provider, backing each mapped region with
// a real anonymous mmap so trim_cache's page-out step has observable
// effect in tests instead of being a no-op stub.
type mmapProvider struct {
	mu      sync.Mutex
	regions map[uintptr][]byte
}

// NewMmapProvider constructs the default real-memory Provider.
func NewMmapProvider() Provider {
	return &mmapProvider{regions: make(map[uintptr][]byte)}
}

func (p *mmapProvider) CreateMappedRegion(granularity int) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, granularity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, fmt.Errorf("mem: create mapped region: %w", err)
	}
	base := uintptr(unsafe.Pointer(&b[0]))
	p.mu.Lock()
	p.regions[base] = b
	p.mu.Unlock()
	return base, nil
}

func (p *mmapProvider) ReleasePage(base uintptr, granularity int) {
	p.mu.Lock()
	b, ok := p.regions[base]
	delete(p.regions, base)
	p.mu.Unlock()
	if !ok {
		return
	}
	_ = unix.Munmap(b)
}

func (p *mmapProvider) PageOut(base uintptr, length int) error {
	p.mu.Lock()
	b, ok := p.regions[base]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return unix.Madvise(b, unix.MADV_DONTNEED)
}
