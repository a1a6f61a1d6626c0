// Package mmap provides a read-write memory mapping of a file's metadata
// header, used by the partition package to back the slot table with shared
// memory instead of buffered I/O.
//
// Unlike a read-only mapping of an immutable segment file, a Mapping here is
// mutated in place by the owning partition and must be explicitly msync'd
// for durability; Close() does this automatically.
package mmap
