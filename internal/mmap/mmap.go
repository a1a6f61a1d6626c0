package mmap

import (
	"errors"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned when attempting to access a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the requested size is invalid.
	ErrInvalidSize = errors.New("mmap: invalid size")
)

// Mapping is a read-write memory mapping of the first size bytes of a file.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	size   int
	closed atomic.Bool
}

// Open maps the first size bytes of f into memory for reading and writing.
// The file must already be at least size bytes long (callers truncate it
// first, as the partition does on first init).
func Open(f *os.File, size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	data, err := osMap(f, size)
	if err != nil {
		return nil, err
	}

	return &Mapping{data: data, size: size}, nil
}

// Bytes returns the underlying byte slice. The slice is valid only until
// Close is called; writes through it are visible to any other process that
// maps the same file, and are not durable until Sync is called.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Sync flushes the mapped pages to disk (msync(MS_SYNC) on unix,
// FlushViewOfFile on Windows). It is the durability primitive for metadata
// mutated through Bytes().
func (m *Mapping) Sync() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osSync(m.data)
}

// Close flushes and unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.data == nil {
		return nil
	}
	syncErr := osSync(m.data)
	unmapErr := osUnmap(m.data)
	m.data = nil
	if syncErr != nil {
		return syncErr
	}
	return unmapErr
}
