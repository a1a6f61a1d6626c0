package partition

import "encoding/binary"

// On-disk layout of MyfileHeader (spec.md §6), little-endian, no padding:
//
//	version  int16   offset 0
//	sequence int64   offset 2
//	count    int32   offset 10
//	node[0]  KeyNode offset 14, 12 bytes each
//
// KeyNode (12 bytes):
//
//	posKB    int32   extent offset in 1 KiB units
//	capacity int16   extent size in 1 KiB units
//	len      int16   logical record length, including the 24-byte NodeHeader
//	flag     [2]byte flag[0] = changed-since-sync
const (
	headerVersionOff  = 0
	headerSequenceOff = 2
	headerCountOff    = 10
	headerFixedSize   = 14 // bytes before node[0]

	keyNodeSize = 12

	extentAlignment = 1024

	requiredVersion = 1
)

// headerSize returns the byte size of MyfileHeader for maxNode slots,
// rounded up to the 1 KiB extent alignment (VALUE_OFFSET in spec.md §6).
func headerSize(maxNode int32) int64 {
	raw := int64(headerFixedSize) + int64(maxNode)*keyNodeSize
	return roundUp(raw, extentAlignment)
}

func roundUp(n, mod int64) int64 {
	return (n + mod - 1) / mod * mod
}

// ceilAlign rounds n up to the nearest multiple of extentAlignment.
func ceilAlign(n int) int {
	return int(roundUp(int64(n), extentAlignment))
}

// slotHeader is a thin view over the mmap-backed byte slice for the fixed
// header fields (version/sequence/count); KeyNode access goes through
// keyNodeAt below since each slot is addressed independently.
type slotHeader struct {
	data []byte
}

func (h slotHeader) version() int16 {
	return int16(binary.LittleEndian.Uint16(h.data[headerVersionOff:]))
}

func (h slotHeader) setVersion(v int16) {
	binary.LittleEndian.PutUint16(h.data[headerVersionOff:], uint16(v))
}

func (h slotHeader) sequence() int64 {
	return int64(binary.LittleEndian.Uint64(h.data[headerSequenceOff:]))
}

func (h slotHeader) setSequence(v int64) {
	binary.LittleEndian.PutUint64(h.data[headerSequenceOff:], uint64(v))
}

func (h slotHeader) count() int32 {
	return int32(binary.LittleEndian.Uint32(h.data[headerCountOff:]))
}

func (h slotHeader) setCount(v int32) {
	binary.LittleEndian.PutUint32(h.data[headerCountOff:], uint32(v))
}

func (h slotHeader) addCount(delta int32) {
	h.setCount(h.count() + delta)
}

// keyNode is a view over one 12-byte slot table entry.
type keyNode struct {
	data []byte // exactly keyNodeSize bytes, sliced from the mapping
}

func (h slotHeader) keyNode(index int32) keyNode {
	off := headerFixedSize + int(index)*keyNodeSize
	return keyNode{data: h.data[off : off+keyNodeSize]}
}

func (n keyNode) posKB() int32 {
	return int32(binary.LittleEndian.Uint32(n.data[0:4]))
}

func (n keyNode) pos() int64 {
	return int64(n.posKB()) * extentAlignment
}

func (n keyNode) setPos(pos int64) {
	if pos%extentAlignment != 0 {
		panic("partition: extent position must be 1 KiB aligned")
	}
	binary.LittleEndian.PutUint32(n.data[0:4], uint32(pos/extentAlignment))
}

func (n keyNode) capacity() int16 {
	return int16(binary.LittleEndian.Uint16(n.data[4:6]))
}

func (n keyNode) setCapacity(v int16) {
	binary.LittleEndian.PutUint16(n.data[4:6], uint16(v))
}

func (n keyNode) length() int16 {
	return int16(binary.LittleEndian.Uint16(n.data[6:8]))
}

func (n keyNode) setLength(v int16) {
	binary.LittleEndian.PutUint16(n.data[6:8], uint16(v))
}

func (n keyNode) changed() bool {
	return n.data[8] != 0
}

func (n keyNode) setFlags(changed bool) {
	if changed {
		n.data[8] = 1
	} else {
		n.data[8] = 0
	}
	n.data[9] = 0
}

func (n keyNode) empty() bool {
	return n.length() == 0
}
