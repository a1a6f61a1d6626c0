package chunkstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeron55/chunkstore/backup"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(t.TempDir(), WithShardCount(3))
	require.NoError(t, err)
	t.Cleanup(func() { e.UnInit() })
	return e
}

// fakeCommitStore is an in-memory backup.CommitStore, standing in for
// backup.DynamoCommitStore in tests that don't talk to real DynamoDB.
type fakeCommitStore struct {
	generation uint64
	name       string
}

func (f *fakeCommitStore) LatestGeneration(ctx context.Context) (uint64, string, error) {
	return f.generation, f.name, nil
}

func (f *fakeCommitStore) CommitGeneration(ctx context.Context, manifestName string) (uint64, error) {
	f.generation++
	f.name = manifestName
	return f.generation, nil
}

func TestEngineSaveLoadRoutesAcrossShards(t *testing.T) {
	e := newTestEngine(t)

	for x := int16(0); x < 9; x++ {
		require.NoError(t, e.SaveBlock(x, 0, 0, []byte{byte(x)}, true))
	}

	for x := int16(0); x < 9; x++ {
		data, result, err := e.LoadBlock(x, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, LoadOK, result)
		assert.Equal(t, []byte{byte(x)}, data)
	}
}

func TestEngineLoadAbsentForUnwrittenCoordinate(t *testing.T) {
	e := newTestEngine(t)
	_, result, err := e.LoadBlock(5, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, LoadAbsent, result)
}

func TestEngineDeleteThenLoadIsAbsent(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.SaveBlock(1, 1, 1, []byte("x"), true))
	require.NoError(t, e.DeleteBlock(1, 1, 1))

	_, result, err := e.LoadBlock(1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, LoadAbsent, result)
}

func TestEngineProcessCommandsDeferWriteUntilFlush(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.ProcessSetCommand(2, 0, 0, []byte("queued"), true))

	// Visible immediately via the write-absorbing map (read-your-writes),
	// even though the partition itself has not been touched yet.
	data, result, err := e.LoadBlock(2, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, LoadOK, result)
	assert.Equal(t, []byte("queued"), data)

	require.NoError(t, e.Flush(context.Background()))

	data, result, err = e.LoadBlock(2, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, LoadOK, result)
	assert.Equal(t, []byte("queued"), data)
}

func TestEngineCheckFlushReportsWhetherWriteAbsorbingMapIsEmpty(t *testing.T) {
	e := newTestEngine(t)

	assert.True(t, e.CheckFlush())

	require.NoError(t, e.ProcessSetCommand(1, 0, 0, []byte("a"), true))
	assert.False(t, e.CheckFlush())

	require.NoError(t, e.Flush(context.Background()))
	assert.True(t, e.CheckFlush())
}

func TestEnginePendingCommandCountTracksQueuedCommands(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, 0, e.PendingCommandCount())

	require.NoError(t, e.ProcessSetCommand(1, 0, 0, []byte("a"), true))
	assert.Equal(t, 1, e.PendingCommandCount())

	require.NoError(t, e.ProcessSetCommand(2, 0, 0, []byte("b"), true))
	assert.Equal(t, 2, e.PendingCommandCount())
}

func TestEngineGetModifyListAggregatesAcrossPartitions(t *testing.T) {
	e := newTestEngine(t)

	for x := int16(0); x < 6; x++ {
		require.NoError(t, e.SaveBlock(x, 0, 0, []byte{byte(x)}, true))
	}

	list := e.GetModifyList(nil)
	assert.Len(t, list, 6)
	assert.EqualValues(t, 6, e.ModifiedCount())
}

func TestEngineUnInitIsIdempotent(t *testing.T) {
	e, err := New(t.TempDir(), WithShardCount(1), WithMaxNode(64))
	require.NoError(t, err)

	require.NoError(t, e.UnInit())
	require.NoError(t, e.UnInit())
}

func TestEngineOperationsAfterUnInitFail(t *testing.T) {
	e, err := New(t.TempDir(), WithShardCount(1), WithMaxNode(64))
	require.NoError(t, err)
	require.NoError(t, e.UnInit())

	err = e.SaveBlock(0, 0, 0, []byte("x"), true)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEngineForceFlushAppliesPendingCommandsAndReportsHitRate(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.ProcessSetCommand(3, 0, 0, []byte("forced"), true))

	start := time.Now()
	require.NoError(t, e.ForceFlush(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), forceFlushSettleDelay)

	data, result, err := e.LoadBlock(3, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, LoadOK, result)
	assert.Equal(t, []byte("forced"), data)
}

func TestEngineForceFlushOnClosedEngineFails(t *testing.T) {
	e, err := New(t.TempDir(), WithShardCount(1), WithMaxNode(64))
	require.NoError(t, err)
	require.NoError(t, e.UnInit())

	err = e.ForceFlush(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEnginePrintHitRateIsRateLimited(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Should not panic or block when called back-to-back; the limiter
	// silently drops calls faster than once per 30s.
	e.PrintHitRate(ctx)
	e.PrintHitRate(ctx)
}

func TestEngineCacheSummaryWithinBounds(t *testing.T) {
	e := newTestEngine(t)

	for x := int16(0); x < 9; x++ {
		require.NoError(t, e.SaveBlock(x, 0, 0, make([]byte, 100), true))
	}

	count, bytes := e.CacheSummary()
	assert.GreaterOrEqual(t, count, int32(0))
	assert.GreaterOrEqual(t, bytes, int64(0))
}

func TestEngineConcurrentWritesToDifferentCoordinatesAreSafe(t *testing.T) {
	e := newTestEngine(t)

	done := make(chan error, 20)
	for i := int16(0); i < 20; i++ {
		i := i
		go func() {
			done <- e.SaveBlock(i, i%3, i, []byte{byte(i)}, true)
		}()
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-done)
	}

	for i := int16(0); i < 20; i++ {
		data, result, err := e.LoadBlock(i, i%3, i)
		require.NoError(t, err)
		assert.Equal(t, LoadOK, result)
		assert.Equal(t, []byte{byte(i)}, data)
	}
}

func TestEngineBackupAndCommitAdvancesGeneration(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.SaveBlock(1, 0, 0, []byte("backed up"), true))

	store := backup.NewLocalStore(t.TempDir())
	commit := &fakeCommitStore{}

	gen, err := e.BackupAndCommit(context.Background(), store, commit, "backup-manifest-1.json")
	require.NoError(t, err)
	assert.EqualValues(t, 1, gen)

	latest, name, err := commit.LatestGeneration(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, latest)
	assert.Equal(t, "backup-manifest-1.json", name)
}
