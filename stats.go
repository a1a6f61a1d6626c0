package chunkstore

import "sync/atomic"

// stats holds the engine's running counters (spec.md §4.3 PrintHitRate).
// All fields are accessed only via atomic ops so readers never need the
// cacheLock.
type stats struct {
	totalLoadCount atomic.Uint64
	cache1HitCount atomic.Uint64 // resolved from the write-absorbing map
	cache2HitCount atomic.Uint64 // resolved from a partition's read cache
	tpsCounterR    atomic.Uint64
	tpsCounterW    atomic.Uint64
}

// Stats is a point-in-time copy of the engine's counters.
type Stats struct {
	TotalLoads uint64
	Cache1Hits uint64
	Cache2Hits uint64
	ReadCount  uint64
	WriteCount uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		TotalLoads: s.totalLoadCount.Load(),
		Cache1Hits: s.cache1HitCount.Load(),
		Cache2Hits: s.cache2HitCount.Load(),
		ReadCount:  s.tpsCounterR.Load(),
		WriteCount: s.tpsCounterW.Load(),
	}
}

func (s *stats) recordLoad(cache1, cache2 bool) {
	s.totalLoadCount.Add(1)
	s.tpsCounterR.Add(1)
	if cache1 {
		s.cache1HitCount.Add(1)
	}
	if cache2 {
		s.cache2HitCount.Add(1)
	}
}

func (s *stats) recordWrite() {
	s.tpsCounterW.Add(1)
}

// resetTPS zeroes the TPS counters and returns their pre-reset values, for
// PrintHitRate's "counters for TPS reset on each call" contract (spec.md
// §4.3).
func (s *stats) resetTPS() (readTPS, writeTPS uint64) {
	return s.tpsCounterR.Swap(0), s.tpsCounterW.Swap(0)
}
