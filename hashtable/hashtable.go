// Package hashtable is the global file→SharedCacheMap registry's
// backing structure (spec §3.3's implicit "global registry"): a
// bucketed hash table with a read/write lock per bucket, so concurrent
// Gets share a bucket, adapted from biscuit/src/hashtable/hashtable.go.
//
// That original hashes arbitrary interface{} keys with hash/fnv. Keys
// here are always uuid.UUID (fileobj.FileObject identities), so the
// hash is a keyed SipHash-2-4 over the 16 key bytes instead — the same
// dependency SnellerInc-sneller carries for content hashing — which
// resists an adversarial sequence of file opens hash-flooding a single
// bucket the way an unkeyed hash cannot.
package hashtable

import (
	"sync"

	"github.com/dchest/siphash"
	"github.com/google/uuid"
)

type elem_t struct {
	key   uuid.UUID
	value interface{}
	next  *elem_t
}

type bucket_t struct {
	sync.RWMutex
	first *elem_t
}

// Hashtable_t maps uuid.UUID keys to arbitrary values.
type Hashtable_t struct {
	table []*bucket_t
	k0    uint64
	k1    uint64
}

// MkHash allocates a new Hashtable_t with size buckets. k0/k1 key the
// SipHash instance; tests can fix them for reproducibility, production
// callers should randomize them once at startup.
func MkHash(size int, k0, k1 uint64) *Hashtable_t {
	ht := &Hashtable_t{table: make([]*bucket_t, size), k0: k0, k1: k1}
	for i := range ht.table {
		ht.table[i] = &bucket_t{}
	}
	return ht
}

func (ht *Hashtable_t) bucketFor(key uuid.UUID) *bucket_t {
	h := siphash.Hash(ht.k0, ht.k1, key[:])
	return ht.table[h%uint64(len(ht.table))]
}

// Get looks key up under the bucket's read lock: concurrent Gets never
// block each other, but a Get waits for a Set or Del on the same bucket.
func (ht *Hashtable_t) Get(key uuid.UUID) (interface{}, bool) {
	b := ht.bucketFor(key)
	b.RLock()
	defer b.RUnlock()
	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

// Set inserts or replaces the value for key, returning the previous
// value if any.
func (ht *Hashtable_t) Set(key uuid.UUID, val interface{}) (interface{}, bool) {
	b := ht.bucketFor(key)
	b.Lock()
	defer b.Unlock()
	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			old := e.value
			e.value = val
			return old, true
		}
	}
	b.first = &elem_t{key: key, value: val, next: b.first}
	return nil, false
}

// Del removes key, reporting whether it was present.
func (ht *Hashtable_t) Del(key uuid.UUID) bool {
	b := ht.bucketFor(key)
	b.Lock()
	defer b.Unlock()
	var prev *elem_t
	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			if prev == nil {
				b.first = e.next
			} else {
				prev.next = e.next
			}
			return true
		}
		prev = e
	}
	return false
}
