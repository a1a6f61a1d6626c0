// Package backup provides best-effort, out-of-band replication of a
// partition's (data, meta) file pair to a pluggable blob store, adapted
// from the teacher's blobstore package. The interface stays narrow: a
// read side plus a writable-blob side suited to streaming an upload.
package backup

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist. Implementations
// should return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for writing and reading backup blobs.
type Store interface {
	// Create opens name for streaming writes, replacing any existing blob
	// of the same name. The S3 and MinIO stores replace it when Close
	// succeeds; LocalStore truncates the existing file as soon as Create
	// is called.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Open opens an existing blob for reading, used to verify a prior
	// backup.
	Open(ctx context.Context, name string) (Blob, error)
}

// Blob is a read-only handle to a backup blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// WritableBlob is a streaming write handle. Close must be called exactly
// once; it finalizes the upload and waits for it to complete.
type WritableBlob interface {
	io.WriteCloser
}
