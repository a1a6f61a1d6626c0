// Package chunkstore implements an embedded, single-process key-value
// storage engine keyed by signed 16-bit voxel coordinates (x, y, z).
//
// Blocks are addressed externally through a single 64-bit id (see
// internal/coord), routed to one of ShardCount partitions by |x| modulo the
// shard count, and held durably in a pair of files per partition: a data
// file holding 1 KiB-aligned extents and a memory-mapped metadata file
// giving O(1) coordinate -> extent lookup.
//
// A write-absorbing layer in front of the partitions lets repeated writes
// to the same coordinate coalesce in memory between flushes; Flush and
// ForceFlush drain it and make it durable.
package chunkstore
