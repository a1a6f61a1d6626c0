package chunkstore

// commandKind distinguishes the two write-absorbing operations the engine
// coalesces between flushes (spec.md §4.3 "modifyCommands").
type commandKind int

const (
	commandSave commandKind = iota
	commandDelete
)

// kvCommand is one pending, not-yet-flushed mutation against a coordinate.
// ProcessSetCommand and ProcessDeleteCommand overwrite any prior pending
// command for the same coordinate, so only the latest value survives to
// the next flush.
type kvCommand struct {
	kind    commandKind
	x, y, z int16
	data    []byte
	changed bool
}
