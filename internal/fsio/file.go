// Package fsio provides the abstract positional-I/O file handle the
// partition package is built on: scatter pread/pwrite, fsync/fdatasync, and
// a best-effort hint-flush (sync_file_range on Linux, a no-op elsewhere).
//
// This mirrors the teacher's internal/fs abstraction but trades its
// io.ReadWriteCloser-oriented File interface for one centered on absolute
// offsets, since every partition access is positional.
package fsio

import (
	"os"
)

// File is a positional-I/O handle backed by an *os.File.
type File struct {
	f *os.File
}

// Open opens (or creates) name with the given flags for positional I/O.
func Open(name string, flag int, perm os.FileMode) (*File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &File{f: f}, nil
}

// OSFile exposes the underlying *os.File, needed to mmap the metadata file.
func (f *File) OSFile() *os.File {
	return f.f
}

// ReadAt reads len(p) bytes starting at off, making a best effort to fill p
// even across short reads (a pread loop), like the studied File::Read.
func (f *File) ReadAt(off int64, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := preadAt(f.f, p[total:], off+int64(total))
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// WriteAt writes all of p starting at off, looping across short writes like
// the studied File::Write.
func (f *File) WriteAt(off int64, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := pwriteAt(f.f, p[total:], off+int64(total))
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// Seek delegates to the underlying file, used only to discover the current
// end-of-file offset before an append.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.f.Seek(offset, whence)
}

// Size returns the current length of the file.
func (f *File) Size() (int64, error) {
	fi, err := f.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Truncate extends or shrinks the file to exactly size bytes.
func (f *File) Truncate(size int64) error {
	return f.f.Truncate(size)
}

// Sync performs a full fsync, flushing data and metadata.
func (f *File) Sync() error {
	return f.f.Sync()
}

// Datasync flushes file data but not necessarily metadata (fdatasync on
// platforms that support it; falls back to Sync elsewhere).
func (f *File) Datasync() error {
	return datasync(f.f)
}

// HintFlush asks the kernel to start writeback of [offset, offset+length)
// without waiting for it to complete (sync_file_range on Linux). It is
// advisory: errors are not fatal and callers should not rely on it for
// durability, only for keeping dirty page accumulation bounded.
func (f *File) HintFlush(offset, length int64) error {
	return hintFlush(f.f, offset, length)
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}
