package partition

// fifoQueue is a minimal FIFO of local slot indices, backed by a slice with
// a head pointer; it is compacted once the consumed prefix is longer than
// 1024 entries and past half the backing array, so long-running partitions
// do not leak memory.
type fifoQueue struct {
	buf  []int32
	head int
}

func (q *fifoQueue) pushBack(v int32) {
	q.buf = append(q.buf, v)
}

func (q *fifoQueue) empty() bool {
	return q.head >= len(q.buf)
}

func (q *fifoQueue) size() int {
	return len(q.buf) - q.head
}

func (q *fifoQueue) popFront() (int32, bool) {
	if q.empty() {
		return 0, false
	}
	v := q.buf[q.head]
	q.head++
	if q.head > 1024 && q.head*2 > len(q.buf) {
		q.buf = append([]int32(nil), q.buf[q.head:]...)
		q.head = 0
	}
	return v, true
}

// prereadSoftCeiling is the FIFO size beyond which preread entries are
// preferred for eviction over access entries (spec.md §4.2.4).
const prereadSoftCeiling = 1024

// maxFIFOTokensPerValue bounds how many FIFO entries may reference a single
// cached value at once, giving every hot key a bounded second-chance window
// (spec.md §4.2.4 rationale).
const maxFIFOTokensPerValue = 3

// readCache is the per-partition two-tier read cache: a slot -> handle
// array over a slab allocator, fronted by access/preread FIFOs for
// eviction (spec.md §3, §4.2.4).
type readCache struct {
	enabled     bool
	slab        *slabAllocator
	node        []cacheValueHandle
	access      fifoQueue
	preread     fifoQueue
	nodeCount   int32
	memoryBytes int64
	maxCache    int32
	maxBytes    int64
}

func newReadCache(maxNode int32, maxCache int32, maxBytes int64) *readCache {
	node := make([]cacheValueHandle, maxNode)
	for i := range node {
		node[i] = invalidHandle
	}
	return &readCache{
		enabled:  true,
		slab:     newSlabAllocator(int(maxCache)),
		node:     node,
		maxCache: maxCache,
		maxBytes: maxBytes,
	}
}

// newDisabledCache models CacheMode == APPEND: no slot->handle array, every
// save appends, every load is a miss (spec.md §4.2 Initialization).
func newDisabledCache() *readCache {
	return &readCache{enabled: false}
}

// lookup returns the cached payload for slot, and whether it is present.
func (c *readCache) lookup(slot int32) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}
	h := c.node[slot]
	if h == invalidHandle {
		return nil, false
	}
	v := c.slab.get(h)
	if v == nil {
		return nil, false
	}
	return v.data, true
}

// allocEvictIndex implements AllocCacheIndex: prefer draining the preread
// FIFO once it exceeds the soft ceiling, otherwise drain access.
func (c *readCache) allocEvictIndex() (int32, bool) {
	if c.preread.size() > prereadSoftCeiling {
		return c.preread.popFront()
	}
	if !c.access.empty() {
		return c.access.popFront()
	}
	return c.preread.popFront()
}

func (c *readCache) evictOne(slot int32) {
	h := c.node[slot]
	if h == invalidHandle {
		return
	}
	v := c.slab.get(h)
	if v == nil {
		return
	}
	v.refcount--
	if v.refcount <= 0 {
		c.memoryBytes -= int64(len(v.data))
		v.data = nil
		c.slab.free(h)
		c.node[slot] = invalidHandle
		c.nodeCount--
	}
}

// evictUntilFits runs the eviction loop from spec.md §4.2.4, entered before
// every insertion.
func (c *readCache) evictUntilFits() {
	for c.nodeCount >= c.maxCache || c.memoryBytes >= c.maxBytes {
		slot, ok := c.allocEvictIndex()
		if !ok {
			return
		}
		c.evictOne(slot)
	}
}

// insert implements cacheBlock: insert or refresh slot's cached payload.
// rewriteValue forces the stored bytes to be replaced with value;
// isPread marks an opportunistic prefetch insertion, which never
// duplicates an already-cached slot and is tracked on the preread FIFO
// with the lower eviction priority.
func (c *readCache) insert(slot int32, value []byte, rewriteValue, isPread bool) {
	if !c.enabled {
		return
	}

	c.evictUntilFits()

	if !rewriteValue && c.node[slot] == invalidHandle {
		rewriteValue = true
	}

	var h cacheValueHandle
	switch {
	case c.node[slot] == invalidHandle:
		h = c.slab.alloc()
		if h == invalidHandle {
			return // slab exhausted: benign rejection, spec.md §7
		}
		c.nodeCount++
		c.node[slot] = h
	case isPread:
		return // prefetch never duplicates an already-cached slot
	default:
		h = c.node[slot]
	}

	v := c.slab.get(h)
	if v == nil {
		return
	}

	if rewriteValue {
		c.memoryBytes -= int64(len(v.data))
		cp := make([]byte, len(value))
		copy(cp, value)
		v.data = cp
		c.memoryBytes += int64(len(v.data))
	}

	if v.refcount < maxFIFOTokensPerValue {
		if isPread {
			c.preread.pushBack(slot)
		} else {
			c.access.pushBack(slot)
		}
		v.refcount++
	}
}

// releaseAll frees every cached value, used by UnInit.
func (c *readCache) releaseAll() {
	if !c.enabled {
		return
	}
	for slot, h := range c.node {
		if h == invalidHandle {
			continue
		}
		if v := c.slab.get(h); v != nil {
			v.data = nil
		}
		c.slab.free(h)
		c.node[slot] = invalidHandle
	}
	c.access = fifoQueue{}
	c.preread = fifoQueue{}
	c.nodeCount = 0
	c.memoryBytes = 0
}

// summary reports the current cache occupancy (spec.md §4.3 GetCacheSummary).
func (c *readCache) summary() (count int32, bytes int64) {
	return c.nodeCount, c.memoryBytes
}
