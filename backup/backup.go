package backup

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Snapshotter is the subset of the engine's partition type backup needs: a
// byte-identical, mutually consistent copy of one partition's (data,
// meta) file pair.
type Snapshotter interface {
	Index() int32
	Snapshot() (data, meta []byte, err error)
}

// WriteSnapshot LZ4-compresses and uploads one partition's (data, meta)
// pair to store, as "partition-<index>.data.lz4" and
// "partition-<index>.meta.lz4". The payloads are typically already
// compressed (spec.md §1's voxel chunks), but the 1 KiB extent padding
// and the largely-empty slot table compress well (SPEC_FULL.md §4.6).
func WriteSnapshot(ctx context.Context, store Store, p Snapshotter) error {
	data, meta, err := p.Snapshot()
	if err != nil {
		return fmt.Errorf("partition %d: snapshot: %w", p.Index(), err)
	}

	if err := writeCompressedBlob(ctx, store, fmt.Sprintf("partition-%d.data.lz4", p.Index()), data); err != nil {
		return fmt.Errorf("partition %d: upload data: %w", p.Index(), err)
	}
	if err := writeCompressedBlob(ctx, store, fmt.Sprintf("partition-%d.meta.lz4", p.Index()), meta); err != nil {
		return fmt.Errorf("partition %d: upload meta: %w", p.Index(), err)
	}
	return nil
}

func writeCompressedBlob(ctx context.Context, store Store, name string, raw []byte) error {
	blob, err := store.Create(ctx, name)
	if err != nil {
		return err
	}

	zw := lz4.NewWriter(blob)
	if _, err := zw.Write(raw); err != nil {
		blob.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		blob.Close()
		return err
	}
	return blob.Close()
}

// ReadSnapshot downloads and decompresses one of the two blobs
// WriteSnapshot produces, for restore or backup verification.
func ReadSnapshot(ctx context.Context, store Store, name string) ([]byte, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	r := lz4.NewReader(&blobReader{blob: blob})
	buf := make([]byte, 0, blob.Size())
	chunk := make([]byte, 64*1024)
	for {
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return buf, nil
}

type blobReader struct {
	blob Blob
	pos  int64
}

func (r *blobReader) Read(p []byte) (int, error) {
	n, err := r.blob.ReadAt(p, r.pos)
	r.pos += int64(n)
	return n, err
}
