package exthash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Codec encodes values of a fixed binary size so bucket pages can lay
// entries out bit-exactly. Encode must fill exactly Size bytes.
type Codec[T any] interface {
	Size() int
	Encode(buf []byte, v T)
	Decode(buf []byte) T
}

// Comparator returns <0, 0 or >0, used for bucket scans and duplicate
// detection.
type Comparator[K any] func(a, b K) int

// HashFunc maps a key to the 32-bit hash used identically at the
// header, directory and bucket routing levels.
type HashFunc[K any] func(key K) uint32

// Uint32Codec stores uint32 values little-endian in 4 bytes.
type Uint32Codec struct{}

func (Uint32Codec) Size() int { return 4 }

func (Uint32Codec) Encode(buf []byte, v uint32) { binary.LittleEndian.PutUint32(buf, v) }

func (Uint32Codec) Decode(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf) }

// Uint64Codec stores uint64 values little-endian in 8 bytes.
type Uint64Codec struct{}

func (Uint64Codec) Size() int { return 8 }

func (Uint64Codec) Encode(buf []byte, v uint64) { binary.LittleEndian.PutUint64(buf, v) }

func (Uint64Codec) Decode(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf) }

// FixedStringCodec stores strings in a fixed-width zero-padded slot;
// longer strings are truncated to N bytes.
type FixedStringCodec struct {
	N int
}

func (c FixedStringCodec) Size() int { return c.N }

func (c FixedStringCodec) Encode(buf []byte, v string) {
	n := copy(buf[:c.N], v)
	for i := n; i < c.N; i++ {
		buf[i] = 0
	}
}

func (c FixedStringCodec) Decode(buf []byte) string {
	end := c.N
	for end > 0 && buf[end-1] == 0 {
		end--
	}
	return string(buf[:end])
}

// CompareUint32 is the comparator for uint32 keys.
func CompareUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareUint64 is the comparator for uint64 keys.
func CompareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareString is the comparator for string keys.
func CompareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// DefaultHashFunc hashes the codec's encoding of a key with xxhash,
// truncated to 32 bits.
func DefaultHashFunc[K any](codec Codec[K]) HashFunc[K] {
	return func(key K) uint32 {
		buf := make([]byte, codec.Size())
		codec.Encode(buf, key)
		return uint32(xxhash.Sum64(buf))
	}
}
