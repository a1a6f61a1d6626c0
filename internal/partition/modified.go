package partition

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// modifiedBitmap mirrors every slot's flag[0] bit (spec.md §4.5 / §3
// KeyNode invariants) in a RoaringBitmap, so a caller who only needs the
// count or a subset of modified slots does not have to pay for a linear
// scan of up to 1.49 Mi slots the way GetModifyList does.
//
// It is a cache over the mmap-backed slot table, not a separate source of
// truth: every mutation site in partition.go updates both in the same
// critical section, under fileLock.
type modifiedBitmap struct {
	rb *roaring.Bitmap
}

func newModifiedBitmap() *modifiedBitmap {
	return &modifiedBitmap{rb: roaring.New()}
}

func (m *modifiedBitmap) set(slot int32, changed bool) {
	if changed {
		m.rb.Add(uint32(slot))
	} else {
		m.rb.Remove(uint32(slot))
	}
}

func (m *modifiedBitmap) clear(slot int32) {
	m.rb.Remove(uint32(slot))
}

// count returns the number of slots currently marked changed, in O(1).
func (m *modifiedBitmap) count() uint64 {
	return m.rb.GetCardinality()
}

// slots iterates the local slot indices currently marked changed, in
// ascending order.
func (m *modifiedBitmap) slots() iter.Seq[int32] {
	return func(yield func(int32) bool) {
		it := m.rb.Iterator()
		for it.HasNext() {
			if !yield(int32(it.Next())) {
				return
			}
		}
	}
}
