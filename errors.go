package chunkstore

import (
	"errors"

	"github.com/celeron55/chunkstore/internal/partition"
)

var (
	// ErrClosed is returned by any operation attempted after UnInit.
	ErrClosed = errors.New("chunkstore: engine is closed")

	// ErrInvalidArgument names malformed constructor arguments. New does
	// not return it: WithShardCount and WithMaxNode ignore values below 1
	// and keep their defaults.
	ErrInvalidArgument = errors.New("chunkstore: invalid argument")

	// ErrIncompatibleVersion is returned by New when an existing meta file
	// carries a version this implementation does not understand.
	ErrIncompatibleVersion = partition.ErrIncompatibleVersion

	// ErrOutOfRange is returned by SaveBlock, LoadBlock, and DeleteBlock
	// for a coordinate outside the engine's addressable domain (x < 0,
	// z < 0, or y/x overflowing their local-slot bound).
	ErrOutOfRange = partition.ErrOutOfRange

	// ErrTooLarge is returned by SaveBlock when a record's rounded
	// capacity would reach MaxDataLength.
	ErrTooLarge = partition.ErrTooLarge

	// ErrCorrupt is returned by LoadBlock alongside a LoadCorrupt result.
	ErrCorrupt = partition.ErrCorrupt
)

// LoadResult distinguishes "absent" from "corrupt" from "present" for a
// load (spec.md §7 Open Question 3: the studied source overloads an
// "ERROR" string sentinel that is indistinguishable from a real payload
// happening to equal it).
type LoadResult = partition.LoadResult

const (
	LoadAbsent  = partition.LoadAbsent
	LoadOK      = partition.LoadOK
	LoadCorrupt = partition.LoadCorrupt
)
