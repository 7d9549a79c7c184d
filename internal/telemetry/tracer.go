package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to disk and store spans.
const (
	AttrDisk       = "disk.name"
	AttrDiskClass  = "disk.class"
	AttrDriver     = "disk.driver"
	AttrOperation  = "disk.operation"
	AttrSector     = "disk.sector"
	AttrCount      = "disk.count"
	AttrBytes      = "disk.bytes"
	AttrDirect     = "disk.direct"
	AttrPasses     = "disk.erase_passes"
	AttrCacheHit   = "cache.hit"
	AttrCacheDirty = "cache.dirty"
	AttrStoreType  = "store.type"
	AttrVolume     = "store.volume"
	AttrExtent     = "store.extent"
	AttrBucket     = "storage.bucket"
	AttrKey        = "storage.key"
)

// Span names.
const (
	SpanDiskRead       = "disk.read"
	SpanDiskWrite      = "disk.write"
	SpanDiskSync       = "disk.sync"
	SpanDiskInvalidate = "disk.invalidate"
	SpanDiskErase      = "disk.erase"
	SpanDiskFlags      = "disk.flags"
	SpanDiskDoor       = "disk.door"
	SpanDiskMedia      = "disk.media"
	SpanStoreRead      = "store.read"
	SpanStoreWrite     = "store.write"
	SpanStoreDelete    = "store.delete"
	SpanStoreList      = "store.list"
)

func Disk(name string) attribute.KeyValue {
	return attribute.String(AttrDisk, name)
}

func DiskClass(class string) attribute.KeyValue {
	return attribute.String(AttrDiskClass, class)
}

func Driver(name string) attribute.KeyValue {
	return attribute.String(AttrDriver, name)
}

func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

func Sector(s uint64) attribute.KeyValue {
	return attribute.Int64(AttrSector, int64(s))
}

func Count(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrCount, int64(n))
}

func Bytes(n int) attribute.KeyValue {
	return attribute.Int(AttrBytes, n)
}

func Direct(direct bool) attribute.KeyValue {
	return attribute.Bool(AttrDirect, direct)
}

func Passes(n int) attribute.KeyValue {
	return attribute.Int(AttrPasses, n)
}

func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

func CacheDirty(n int) attribute.KeyValue {
	return attribute.Int(AttrCacheDirty, n)
}

func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

func Volume(v string) attribute.KeyValue {
	return attribute.String(AttrVolume, v)
}

func Extent(idx uint64) attribute.KeyValue {
	return attribute.Int64(AttrExtent, int64(idx))
}

func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartDiskSpan starts a span for an operation on the named disk.
func StartDiskSpan(ctx context.Context, span, disk string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, Disk(disk))
	all = append(all, attrs...)
	return StartSpan(ctx, span, trace.WithAttributes(all...))
}

// StartStoreSpan starts a span for an extent store call.
func StartStoreSpan(ctx context.Context, span, storeType, volume string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+2)
	all = append(all, StoreType(storeType), Volume(volume))
	all = append(all, attrs...)
	return StartSpan(ctx, span, trace.WithAttributes(all...))
}
