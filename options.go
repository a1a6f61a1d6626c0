package chunkstore

import (
	"github.com/celeron55/chunkstore/internal/partition"
)

type options struct {
	shardCount       int32
	maxNode          int32
	cacheMode        partition.CacheMode
	logger           *Logger
	filenameTemplate string
}

// Option configures New's engine construction.
//
// Today options primarily exist to avoid exploding the constructor's
// signature (e.g. test-only partition sizing).
type Option func(*options)

// WithShardCount overrides P, the number of partitions. The default is 10,
// matching spec.md §6. count must be >= 1.
func WithShardCount(count int32) Option {
	return func(o *options) {
		if count >= 1 {
			o.shardCount = count
		}
	}
}

// WithMaxNode overrides MAX_NODE, the slot table size per partition. The
// default is partition.DefaultMaxNode (14*104*1024); tests that never save
// use a much smaller value so a partition's meta file isn't ~18 MiB. The
// slot layout does not scale with it: a smaller table only holds the slots
// below maxNode, and y alone puts most coordinates far above a few hundred.
func WithMaxNode(maxNode int32) Option {
	return func(o *options) {
		if maxNode >= 1 {
			o.maxNode = maxNode
		}
	}
}

// WithAppendOnlyCache disables the per-partition read cache, matching the
// studied source's CacheMode == APPEND: every save appends a fresh extent
// and every load misses the cache and goes to disk.
func WithAppendOnlyCache() Option {
	return func(o *options) {
		o.cacheMode = partition.CacheModeAppend
	}
}

// WithLogger configures structured logging for engine and partition
// operations. Pass nil to disable logging (the default is NoopLogger).
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithFilenameTemplate overrides the printf-style template used to derive
// each partition's data filename from its index (default "mapdb_%d").
func WithFilenameTemplate(template string) Option {
	return func(o *options) {
		if template != "" {
			o.filenameTemplate = template
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		shardCount:       10,
		maxNode:          partition.DefaultMaxNode,
		cacheMode:        partition.CacheModeCache,
		logger:           NoopLogger(),
		filenameTemplate: "mapdb_%d",
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
