package partition

import "errors"

var (
	// ErrIncompatibleVersion is returned by Open when an existing meta file
	// carries a version this implementation does not understand.
	ErrIncompatibleVersion = errors.New("partition: incompatible meta file version")

	// ErrClosed is returned when an operation is attempted after UnInit.
	ErrClosed = errors.New("partition: closed")

	// ErrOutOfRange is returned when (x, y, z) falls outside localSlot's
	// domain (x < 0, z < 0, or any coordinate overflowing its bound).
	ErrOutOfRange = errors.New("partition: coordinate out of range")

	// ErrTooLarge is returned when a record's rounded capacity would reach
	// MaxDataLength.
	ErrTooLarge = errors.New("partition: record too large")

	// ErrCorrupt is returned alongside a LoadCorrupt result: bad header
	// size, slot index mismatch, short read, invalid length, or CRC
	// mismatch.
	ErrCorrupt = errors.New("partition: corrupt record")
)

// LoadResult distinguishes "absent" from "corrupt" from "present" for a
// load, addressing the original spec's Open Question 3 (the source
// overloads an "ERROR" string sentinel, indistinguishable from a real
// payload that happens to equal it).
type LoadResult int

const (
	// LoadAbsent means the slot is empty (node.len == 0).
	LoadAbsent LoadResult = iota
	// LoadOK means a payload was found and its CRC verified.
	LoadOK
	// LoadCorrupt means a record was found but failed validation: bad
	// header size, slot index mismatch, short read, or CRC mismatch.
	LoadCorrupt
)

func (r LoadResult) String() string {
	switch r {
	case LoadAbsent:
		return "absent"
	case LoadOK:
		return "ok"
	case LoadCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}
