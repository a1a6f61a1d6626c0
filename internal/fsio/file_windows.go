//go:build windows

package fsio

import "os"

func preadAt(f *os.File, p []byte, off int64) (int, error) {
	return f.ReadAt(p, off)
}

func pwriteAt(f *os.File, p []byte, off int64) (int, error) {
	return f.WriteAt(p, off)
}
