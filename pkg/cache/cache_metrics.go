package cache

// Metrics receives cache events. Implementations must be safe for concurrent
// use since several disks report into one collector. A nil Metrics disables
// collection.
type Metrics interface {
	// RecordHit counts sectors served from resident buffers.
	RecordHit(disk string, sectors uint64)

	// RecordMiss counts sectors fetched from the device by a cached read.
	RecordMiss(disk string, sectors uint64)

	// RecordEviction counts a buffer evicted by Prune.
	RecordEviction(disk string, dirty bool)

	// RecordSplit counts a buffer split by a partial write.
	RecordSplit(disk string)

	// RecordAllocFailure counts payload allocations refused by the pool.
	RecordAllocFailure(disk string)

	// RecordFlush counts sectors written back by Sync or eviction.
	RecordFlush(disk string, sectors uint64, err error)

	// RecordState publishes the current resident size and buffer counts.
	RecordState(disk string, bytes uint64, buffers, dirty int)
}
