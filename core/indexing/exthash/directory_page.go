package exthash

import (
	"encoding/binary"

	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

// MaxDirectoryDepth bounds the directory arrays so they fit in one
// page: 8 + 2^9 + 2^9*4 = 2568 bytes.
const MaxDirectoryDepth = 9

// DirectoryPage is the middle routing level: 2^globalDepth live slots
// mapping the low globalDepth bits of the hash to bucket page ids,
// with a parallel per-slot local depth array.
//
// Layout (little-endian):
//
//	offset 0:              max_depth (uint32)
//	offset 4:              global_depth (uint32)
//	offset 8:              local_depths (2^max_depth × uint8)
//	offset 8 + 2^max_depth: bucket_page_ids (2^max_depth × int32)
type DirectoryPage struct {
	data []byte
}

const directoryMetaSize = 8

// DirectoryPageView interprets raw page data as a directory page.
func DirectoryPageView(data []byte) *DirectoryPage {
	return &DirectoryPage{data: data}
}

// Init zeroes the depths and marks every bucket slot invalid.
func (d *DirectoryPage) Init(maxDepth uint32) {
	binary.LittleEndian.PutUint32(d.data[0:4], maxDepth)
	binary.LittleEndian.PutUint32(d.data[4:8], 0)
	capacity := uint32(1) << maxDepth
	for i := uint32(0); i < capacity; i++ {
		d.data[directoryMetaSize+i] = 0
		d.setBucketPageIDRaw(i, pagemanager.InvalidPageID)
	}
}

func (d *DirectoryPage) MaxDepth() uint32 {
	return binary.LittleEndian.Uint32(d.data[0:4])
}

func (d *DirectoryPage) GlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.data[4:8])
}

// Size is the number of live directory slots, 2^globalDepth.
func (d *DirectoryPage) Size() uint32 {
	return 1 << d.GlobalDepth()
}

// GlobalDepthMask has the low globalDepth bits set.
func (d *DirectoryPage) GlobalDepthMask() uint32 {
	return (1 << d.GlobalDepth()) - 1
}

// HashToBucketIndex routes by the low globalDepth bits of the hash.
func (d *DirectoryPage) HashToBucketIndex(hash uint32) uint32 {
	return hash & d.GlobalDepthMask()
}

func (d *DirectoryPage) bucketIDOffset(idx uint32) uint32 {
	return directoryMetaSize + (1 << d.MaxDepth()) + idx*4
}

func (d *DirectoryPage) setBucketPageIDRaw(idx uint32, pageID pagemanager.PageID) {
	off := directoryMetaSize + (1 << d.MaxDepth()) + idx*4
	binary.LittleEndian.PutUint32(d.data[off:off+4], uint32(pageID))
}

func (d *DirectoryPage) BucketPageID(idx uint32) pagemanager.PageID {
	off := d.bucketIDOffset(idx)
	return pagemanager.PageID(int32(binary.LittleEndian.Uint32(d.data[off : off+4])))
}

func (d *DirectoryPage) SetBucketPageID(idx uint32, pageID pagemanager.PageID) {
	d.setBucketPageIDRaw(idx, pageID)
}

func (d *DirectoryPage) LocalDepth(idx uint32) uint32 {
	return uint32(d.data[directoryMetaSize+idx])
}

func (d *DirectoryPage) SetLocalDepth(idx uint32, depth uint8) {
	d.data[directoryMetaSize+idx] = depth
}

func (d *DirectoryPage) IncrLocalDepth(idx uint32) {
	if d.LocalDepth(idx) < d.GlobalDepth() {
		d.data[directoryMetaSize+idx]++
	}
}

func (d *DirectoryPage) DecrLocalDepth(idx uint32) {
	if d.LocalDepth(idx) > 0 {
		d.data[directoryMetaSize+idx]--
	}
}

// IncrGlobalDepth doubles the directory, duplicating every existing
// slot's bucket pointer and local depth into the new upper half.
func (d *DirectoryPage) IncrGlobalDepth() {
	depth := d.GlobalDepth()
	if depth >= d.MaxDepth() {
		return
	}
	half := uint32(1) << depth
	for i := uint32(0); i < half; i++ {
		d.SetBucketPageID(half+i, d.BucketPageID(i))
		d.SetLocalDepth(half+i, uint8(d.LocalDepth(i)))
	}
	binary.LittleEndian.PutUint32(d.data[4:8], depth+1)
}

// DecrGlobalDepth halves the directory.
func (d *DirectoryPage) DecrGlobalDepth() {
	depth := d.GlobalDepth()
	if depth == 0 {
		return
	}
	binary.LittleEndian.PutUint32(d.data[4:8], depth-1)
}

// CanShrink reports whether the upper half of the directory is
// entirely redundant, i.e. no slot's local depth equals the global
// depth.
func (d *DirectoryPage) CanShrink() bool {
	depth := d.GlobalDepth()
	if depth == 0 {
		return false
	}
	for i := uint32(0); i < d.Size(); i++ {
		if d.LocalDepth(i) == depth {
			return false
		}
	}
	return true
}
