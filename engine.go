package chunkstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/celeron55/chunkstore/backup"
	"github.com/celeron55/chunkstore/internal/coord"
	"github.com/celeron55/chunkstore/internal/partition"
)

// Engine is the embedded key-value store: P partitions fronted by a
// write-absorbing map that coalesces repeated writes to the same
// coordinate between flushes (spec.md §2, §4.3).
type Engine struct {
	savedir    string
	shardCount int32
	logger     *Logger

	partitions []*partition.Partition

	cacheLock       sync.Mutex
	modifyCommands  map[int64]kvCommand
	pendingRequests int

	flushLock sync.Mutex

	hitRateLimiter *rate.Limiter

	stats stats

	closed bool
}

// New opens (or creates) an engine rooted at savedir, with one (data, meta)
// file pair per shard (spec.md §2, §6).
func New(savedir string, opts ...Option) (*Engine, error) {
	o := applyOptions(opts)

	e := &Engine{
		savedir:        savedir,
		shardCount:     o.shardCount,
		logger:         o.logger,
		modifyCommands: make(map[int64]kvCommand),
		hitRateLimiter: rate.NewLimiter(rate.Every(30*time.Second), 1),
	}

	partitions := make([]*partition.Partition, o.shardCount)
	var mu sync.Mutex
	g, _ := errgroup.WithContext(context.Background())
	for i := int32(0); i < o.shardCount; i++ {
		i := i
		g.Go(func() error {
			p, err := partition.Open(savedir, o.filenameTemplate, i, partition.Config{
				ShardCount: o.shardCount,
				MaxNode:    o.maxNode,
				CacheMode:  o.cacheMode,
				Logger:     o.logger,
			})
			if err != nil {
				return fmt.Errorf("partition %d: %w", i, err)
			}
			mu.Lock()
			partitions[i] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, p := range partitions {
			if p != nil {
				p.UnInit()
			}
		}
		return nil, err
	}

	e.partitions = partitions
	return e, nil
}

// ShardCount returns P, the number of partitions.
func (e *Engine) ShardCount() int32 {
	return e.shardCount
}

// partitionFor routes a global x coordinate to its owning partition, per
// spec.md ("routed to partition p = |x| mod P"), matching the studied
// source's getTableIndex (abs(x % MYSQL_BLOCK_TABLE_NUM)).
func (e *Engine) partitionFor(x int16) *partition.Partition {
	p := int32(x) % e.shardCount
	if p < 0 {
		p = -p
	}
	return e.partitions[p]
}

// UnInit tears down every partition concurrently (spec.md §4.4).
func (e *Engine) UnInit() error {
	e.cacheLock.Lock()
	if e.closed {
		e.cacheLock.Unlock()
		return nil
	}
	e.closed = true
	e.cacheLock.Unlock()

	g, _ := errgroup.WithContext(context.Background())
	for _, p := range e.partitions {
		p := p
		g.Go(p.UnInit)
	}
	return g.Wait()
}

// SaveBlock writes data for (x, y, z) directly to its partition, bypassing
// the write-absorbing map. changed marks the slot for GetModifyList.
func (e *Engine) SaveBlock(x, y, z int16, data []byte, changed bool) error {
	if e.isClosed() {
		return ErrClosed
	}
	e.stats.recordWrite()
	err := e.partitionFor(x).SaveBlock(x, y, z, data, changed)
	e.logger.LogSave(context.Background(), x, y, z, len(data), err)
	return err
}

// LoadBlock reads (x, y, z), checking the write-absorbing map first so a
// pending ProcessSetCommand/ProcessDeleteCommand not yet flushed is visible
// to the next LoadBlock (spec.md §4.3/§5 read-your-writes). A command hit
// counts toward Stats.Cache1Hits; a partition read-cache hit counts toward
// Cache2Hits.
func (e *Engine) LoadBlock(x, y, z int16) ([]byte, LoadResult, error) {
	if e.isClosed() {
		return nil, LoadAbsent, ErrClosed
	}

	id := coord.Encode(x, y, z)
	e.cacheLock.Lock()
	cmd, ok := e.modifyCommands[id]
	e.cacheLock.Unlock()

	if ok {
		e.stats.recordLoad(true, false)
		switch cmd.kind {
		case commandSave:
			data := append([]byte(nil), cmd.data...)
			e.logger.LogLoad(context.Background(), x, y, z, LoadOK, true, nil)
			return data, LoadOK, nil
		case commandDelete:
			e.logger.LogLoad(context.Background(), x, y, z, LoadAbsent, true, nil)
			return nil, LoadAbsent, nil
		}
	}

	data, hit, result, err := e.partitionFor(x).LoadBlock(x, y, z)
	e.stats.recordLoad(false, hit)
	e.logger.LogLoad(context.Background(), x, y, z, result, hit, err)
	return data, result, err
}

// DirectLoadBlock mirrors the studied source's __directLoadBlock,
// including its inverted "changed" flag (Open Question 3; see
// internal/partition.Partition.DirectLoadChangedFlag).
func (e *Engine) DirectLoadBlock(x, y, z int16) (data []byte, changed bool, err error) {
	if e.isClosed() {
		return nil, false, ErrClosed
	}
	return e.partitionFor(x).DirectLoadChangedFlag(x, y, z)
}

// DeleteBlock removes (x, y, z) directly, bypassing the write-absorbing
// map. The underlying extent is not reclaimed (spec.md §4.2 deleteBlock).
func (e *Engine) DeleteBlock(x, y, z int16) error {
	if e.isClosed() {
		return ErrClosed
	}
	e.stats.recordWrite()
	err := e.partitionFor(x).DeleteBlock(x, y, z)
	e.logger.LogDelete(context.Background(), x, y, z, err)
	return err
}

// ProcessSetCommand queues a save against the write-absorbing map, to be
// applied at the next Flush/ForceFlush. It overwrites any prior
// pending command for the same coordinate (spec.md §4.3).
func (e *Engine) ProcessSetCommand(x, y, z int16, data []byte, changed bool) error {
	if e.isClosed() {
		return ErrClosed
	}
	id := coord.Encode(x, y, z)

	e.cacheLock.Lock()
	e.modifyCommands[id] = kvCommand{kind: commandSave, x: x, y: y, z: z, data: data, changed: changed}
	e.pendingRequests = len(e.modifyCommands)
	e.cacheLock.Unlock()
	return nil
}

// ProcessDeleteCommand queues a delete against the write-absorbing map
// (spec.md §4.3).
func (e *Engine) ProcessDeleteCommand(x, y, z int16) error {
	if e.isClosed() {
		return ErrClosed
	}
	id := coord.Encode(x, y, z)

	e.cacheLock.Lock()
	e.modifyCommands[id] = kvCommand{kind: commandDelete, x: x, y: y, z: z}
	e.pendingRequests = len(e.modifyCommands)
	e.cacheLock.Unlock()
	return nil
}

// CheckFlush reports whether it is safe to skip an explicit flush: true
// iff the write-absorbing map has no pending, not-yet-applied commands
// (spec.md §4.3).
func (e *Engine) CheckFlush() bool {
	e.flushLock.Lock()
	defer e.flushLock.Unlock()
	return e.pendingRequests == 0
}

// PendingCommandCount returns the current count of queued, not-yet-applied
// commands, for callers that want a threshold-based flush trigger instead
// of CheckFlush's documented empty/non-empty contract.
func (e *Engine) PendingCommandCount() int {
	e.flushLock.Lock()
	defer e.flushLock.Unlock()
	return e.pendingRequests
}

// drainCommands applies every queued command to its owning partition and
// empties the write-absorbing map. Called with cacheLock held.
func (e *Engine) drainCommands() error {
	var firstErr error
	for _, cmd := range e.modifyCommands {
		p := e.partitionFor(cmd.x)
		var err error
		switch cmd.kind {
		case commandSave:
			err = p.SaveBlock(cmd.x, cmd.y, cmd.z, cmd.data, cmd.changed)
		case commandDelete:
			err = p.DeleteBlock(cmd.x, cmd.y, cmd.z)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.modifyCommands = make(map[int64]kvCommand)
	e.pendingRequests = 0
	return firstErr
}

// Flush drains the write-absorbing map and fsyncs/msyncs every partition
// concurrently (spec.md §4.4).
func (e *Engine) Flush(ctx context.Context) error {
	if e.isClosed() {
		return ErrClosed
	}
	start := time.Now()

	e.cacheLock.Lock()
	drainErr := e.drainCommands()
	e.cacheLock.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, p := range e.partitions {
		p := p
		g.Go(p.Flush)
	}
	flushErr := g.Wait()

	err := drainErr
	if err == nil {
		err = flushErr
	}
	e.logger.LogFlush(ctx, len(e.partitions), time.Since(start).Milliseconds(), err)
	return err
}

// forceFlushPollInterval and forceFlushPollBudget bound the cooperative
// wait for an external drainer to empty the write-absorbing map before
// ForceFlush proceeds regardless (spec.md §4.3, §5: "100 x 100ms").
const (
	forceFlushPollInterval = 100 * time.Millisecond
	forceFlushPollBudget   = 100
	forceFlushSettleDelay  = 500 * time.Millisecond
)

// ForceFlush mirrors the studied source's forceflush(): it polls the
// write-absorbing map for up to 100 x 100ms waiting for an external drainer
// to empty it, sleeps 500ms regardless, then flushes every partition and
// reports the hit rate. It is the only function in this engine allowed to
// block without honoring ctx cancellation (spec.md §5, §6 Cancellation).
func (e *Engine) ForceFlush(ctx context.Context) error {
	if e.isClosed() {
		return ErrClosed
	}

	for i := 0; i < forceFlushPollBudget && !e.CheckFlush(); i++ {
		time.Sleep(forceFlushPollInterval)
	}
	time.Sleep(forceFlushSettleDelay)

	if err := e.Flush(ctx); err != nil {
		return err
	}
	e.PrintHitRate(ctx)
	return nil
}

// PrintHitRate logs instantaneous TPS read/write, running totals, hit
// ratio, and cache count/bytes, rate-limited to at most once per 30
// seconds (spec.md §4.3, SPEC_FULL.md §4.3: "Counters for TPS reset on
// each call"). Calls faster than that are silently dropped.
func (e *Engine) PrintHitRate(ctx context.Context) {
	if !e.hitRateLimiter.Allow() {
		return
	}
	s := e.stats.snapshot()
	readTPS, writeTPS := e.stats.resetTPS()
	cacheCount, cacheBytes := e.CacheSummary()

	var hitRatio float64
	if s.TotalLoads > 0 {
		hitRatio = float64(s.Cache1Hits+s.Cache2Hits) / float64(s.TotalLoads)
	}

	e.logger.LogHitRate(ctx, readTPS, writeTPS, s.TotalLoads, s.Cache1Hits, s.Cache2Hits, hitRatio, cacheCount, cacheBytes)
}

// Stats returns a point-in-time copy of the engine's running counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// GetModifyList appends the global id of every slot across every partition
// whose changed flag is set (spec.md §4.2 GetModifyList, fanned out across
// partitions).
func (e *Engine) GetModifyList(dst []int64) []int64 {
	for _, p := range e.partitions {
		dst = p.GetModifyList(dst)
	}
	return dst
}

// ModifiedCount sums the O(1) per-partition modified-slot cardinalities
// (SPEC_FULL.md §4.5).
func (e *Engine) ModifiedCount() uint64 {
	var total uint64
	for _, p := range e.partitions {
		total += p.ModifiedCount()
	}
	return total
}

// CacheSummary sums the per-partition cache occupancy (spec.md §4.3
// GetCacheSummary, across all P partitions).
func (e *Engine) CacheSummary() (count int32, memoryBytes int64) {
	for _, p := range e.partitions {
		c, b := p.CacheSummary()
		count += c
		memoryBytes += b
	}
	return count, memoryBytes
}

// Backup snapshots every partition concurrently and uploads each as a pair
// of LZ4-compressed blobs to store (SPEC_FULL.md §4.6). It is strictly
// additive: nothing else in the engine depends on it having been called.
func (e *Engine) Backup(ctx context.Context, store backup.Store) error {
	if e.isClosed() {
		return ErrClosed
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range e.partitions {
		p := p
		g.Go(func() error {
			return backup.WriteSnapshot(gctx, store, p)
		})
	}
	err := g.Wait()
	e.logger.LogBackup(ctx, len(e.partitions), err)
	return err
}

// BackupAndCommit runs Backup, then atomically advances commit's generation
// pointer to manifestName. Concurrent hosts calling BackupAndCommit against
// the same store and commit table coordinate through DynamoDB's
// compare-and-swap (backup.DynamoCommitStore) rather than racing on the
// underlying Store's last-writer-wins object overwrites.
func (e *Engine) BackupAndCommit(ctx context.Context, store backup.Store, commit backup.CommitStore, manifestName string) (generation uint64, err error) {
	if err := e.Backup(ctx, store); err != nil {
		return 0, err
	}
	return commit.CommitGeneration(ctx, manifestName)
}

func (e *Engine) isClosed() bool {
	e.cacheLock.Lock()
	defer e.cacheLock.Unlock()
	return e.closed
}
