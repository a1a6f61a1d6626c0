package partition

import (
	"encoding/binary"
	"hash/crc32"
)

// nodeHeaderSize is sizeof(NodeHeader) in the studied source; a test in
// record_test.go checks it.
const nodeHeaderSize = 24

const reservedMagic = 0xCDCDCDCD

// nodeHeader prefixes every on-disk record (spec.md §6).
type nodeHeader struct {
	headSize  uint32
	crc       uint32
	index     uint32
	timestamp uint64
	reserved  uint32
}

func (h nodeHeader) encode(dst []byte) {
	_ = dst[:nodeHeaderSize]
	binary.LittleEndian.PutUint32(dst[0:4], h.headSize)
	binary.LittleEndian.PutUint32(dst[4:8], h.crc)
	binary.LittleEndian.PutUint32(dst[8:12], h.index)
	binary.LittleEndian.PutUint64(dst[12:20], h.timestamp)
	binary.LittleEndian.PutUint32(dst[20:24], h.reserved)
}

func decodeNodeHeader(src []byte) nodeHeader {
	_ = src[:nodeHeaderSize]
	return nodeHeader{
		headSize:  binary.LittleEndian.Uint32(src[0:4]),
		crc:       binary.LittleEndian.Uint32(src[4:8]),
		index:     binary.LittleEndian.Uint32(src[8:12]),
		timestamp: binary.LittleEndian.Uint64(src[12:20]),
		reserved:  binary.LittleEndian.Uint32(src[20:24]),
	}
}

// crc32Of matches the studied source's boost::crc_32_type, which is the
// standard CRC-32 (IEEE 802.3) polynomial.
func crc32Of(payload []byte) uint32 {
	if len(payload) == 0 {
		return 0
	}
	return crc32.ChecksumIEEE(payload)
}
