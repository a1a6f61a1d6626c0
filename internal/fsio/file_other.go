//go:build !linux

package fsio

import "os"

func datasync(f *os.File) error {
	// No fdatasync outside Linux; a full fsync is the closest equivalent.
	return f.Sync()
}

func hintFlush(f *os.File, offset, length int64) error {
	// sync_file_range has no portable equivalent; this is a no-op hint.
	return nil
}
