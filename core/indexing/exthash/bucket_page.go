package exthash

import (
	"encoding/binary"
)

// BucketPage is the leaf level: a packed array of fixed-size key/value
// entries with no ordering guarantee. Lookups scan linearly.
//
// Layout (little-endian):
//
//	offset 0: size (uint32, live entries)
//	offset 4: max_size (uint32)
//	offset 8: entries (max_size × (key_size + value_size))
type BucketPage[K any, V any] struct {
	data     []byte
	keyCodec Codec[K]
	valCodec Codec[V]
	cmp      Comparator[K]
}

const bucketMetaSize = 8

// BucketPageView interprets raw page data as a bucket page with the
// given codecs.
func BucketPageView[K any, V any](data []byte, keyCodec Codec[K], valCodec Codec[V], cmp Comparator[K]) *BucketPage[K, V] {
	return &BucketPage[K, V]{data: data, keyCodec: keyCodec, valCodec: valCodec, cmp: cmp}
}

// MaxBucketSize is the largest entry count a page of pageSize bytes can
// hold for the given codec widths.
func MaxBucketSize(pageSize, keySize, valSize int) int {
	return (pageSize - bucketMetaSize) / (keySize + valSize)
}

// Init empties the bucket and fixes its capacity.
func (b *BucketPage[K, V]) Init(maxSize uint32) {
	binary.LittleEndian.PutUint32(b.data[0:4], 0)
	binary.LittleEndian.PutUint32(b.data[4:8], maxSize)
}

func (b *BucketPage[K, V]) Size() uint32 {
	return binary.LittleEndian.Uint32(b.data[0:4])
}

func (b *BucketPage[K, V]) MaxSize() uint32 {
	return binary.LittleEndian.Uint32(b.data[4:8])
}

func (b *BucketPage[K, V]) IsFull() bool { return b.Size() >= b.MaxSize() }

func (b *BucketPage[K, V]) IsEmpty() bool { return b.Size() == 0 }

func (b *BucketPage[K, V]) setSize(n uint32) {
	binary.LittleEndian.PutUint32(b.data[0:4], n)
}

func (b *BucketPage[K, V]) entryOffset(idx uint32) int {
	stride := b.keyCodec.Size() + b.valCodec.Size()
	return bucketMetaSize + int(idx)*stride
}

// KeyAt decodes the key of the entry at idx.
func (b *BucketPage[K, V]) KeyAt(idx uint32) K {
	off := b.entryOffset(idx)
	return b.keyCodec.Decode(b.data[off : off+b.keyCodec.Size()])
}

// ValueAt decodes the value of the entry at idx.
func (b *BucketPage[K, V]) ValueAt(idx uint32) V {
	off := b.entryOffset(idx) + b.keyCodec.Size()
	return b.valCodec.Decode(b.data[off : off+b.valCodec.Size()])
}

// EntryAt decodes both halves of the entry at idx.
func (b *BucketPage[K, V]) EntryAt(idx uint32) (K, V) {
	return b.KeyAt(idx), b.ValueAt(idx)
}

// Lookup scans for key and returns its value.
func (b *BucketPage[K, V]) Lookup(key K) (V, bool) {
	for i := uint32(0); i < b.Size(); i++ {
		if b.cmp(b.KeyAt(i), key) == 0 {
			return b.ValueAt(i), true
		}
	}
	var zero V
	return zero, false
}

// Insert appends the entry. It returns false when the bucket is full or
// the key is already present; duplicate keys are rejected, not updated.
func (b *BucketPage[K, V]) Insert(key K, value V) bool {
	if b.IsFull() {
		return false
	}
	for i := uint32(0); i < b.Size(); i++ {
		if b.cmp(b.KeyAt(i), key) == 0 {
			return false
		}
	}
	idx := b.Size()
	off := b.entryOffset(idx)
	b.keyCodec.Encode(b.data[off:off+b.keyCodec.Size()], key)
	off += b.keyCodec.Size()
	b.valCodec.Encode(b.data[off:off+b.valCodec.Size()], value)
	b.setSize(idx + 1)
	return true
}

// Remove deletes the entry for key, compacting the array. It returns
// false when the key is absent.
func (b *BucketPage[K, V]) Remove(key K) bool {
	for i := uint32(0); i < b.Size(); i++ {
		if b.cmp(b.KeyAt(i), key) == 0 {
			b.RemoveAt(i)
			return true
		}
	}
	return false
}

// RemoveAt deletes the entry at idx by shifting every later entry one
// slot left.
func (b *BucketPage[K, V]) RemoveAt(idx uint32) {
	size := b.Size()
	if idx >= size {
		return
	}
	stride := b.keyCodec.Size() + b.valCodec.Size()
	start := b.entryOffset(idx)
	end := b.entryOffset(size - 1)
	copy(b.data[start:end], b.data[start+stride:end+stride])
	b.setSize(size - 1)
}

// Clear drops all entries without touching capacity.
func (b *BucketPage[K, V]) Clear() {
	b.setSize(0)
}
