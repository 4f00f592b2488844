// Package fileobj provides the opaque `file` handle that
// initialize_file_cache (spec §4.1, §6) takes as its first parameter.
// The view cache never looks inside a FileObject; it only needs a
// stable identity to key its global registry by and a way to drop its
// own reference on release_file_cache.
//
// Adapted from biscuit's fd.Fd_t/Copyfd (biscuit/src/fd/fd.go),
// which wraps an opaque Fdops_i behind a value that can be duplicated
// and closed; here the "operations" are reduced to the one the cache
// actually needs — a refcount drop — since everything else about a
// real file (path, permissions) is outside this repository's scope.
package fileobj

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// FileObject is the opaque per-file identity the cache keys its
// SharedCacheMap registry by (spec §6's `file` parameter).
type FileObject struct {
	id       uuid.UUID
	refcount int32
}

// New creates a fresh FileObject with one outstanding reference.
func New() *FileObject {
	return &FileObject{id: uuid.New(), refcount: 1}
}

// ID returns the stable identity used as the hashtable key.
func (f *FileObject) ID() uuid.UUID { return f.id }

// Ref adds a reference, mirroring biscuit's Copyfd duplication
// pattern (a new holder of the same underlying object).
func (f *FileObject) Ref() { atomic.AddInt32(&f.refcount, 1) }

// Deref drops a reference and reports whether it was the last one.
func (f *FileObject) Deref() bool {
	return atomic.AddInt32(&f.refcount, -1) == 0
}
