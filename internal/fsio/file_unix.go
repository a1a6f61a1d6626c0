//go:build unix

package fsio

import (
	"os"

	"golang.org/x/sys/unix"
)

// preadAt and pwriteAt go straight to the pread(2)/pwrite(2) syscalls
// rather than os.File's own ReadAt/WriteAt, so positional I/O here uses the
// same golang.org/x/sys dependency the rest of this package (and
// internal/mmap) is built on instead of mixing in the stdlib's file offset
// handling.
func preadAt(f *os.File, p []byte, off int64) (int, error) {
	return unix.Pread(int(f.Fd()), p, off)
}

func pwriteAt(f *os.File, p []byte, off int64) (int, error) {
	return unix.Pwrite(int(f.Fd()), p, off)
}
