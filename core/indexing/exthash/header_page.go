package exthash

import (
	"encoding/binary"

	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

// MaxHeaderDepth bounds the header page's directory-id array so it
// fits in one page: 4 + 2^9*4 = 2052 bytes.
const MaxHeaderDepth = 9

// HeaderPage is the top routing level of the hash table: a fixed array
// of 2^maxDepth directory page ids selected by the top maxDepth bits
// of the hash.
//
// Layout (little-endian):
//
//	offset 0: max_depth (uint32)
//	offset 4: directory_page_ids (2^max_depth × int32)
type HeaderPage struct {
	data []byte
}

const headerMetaSize = 4

// HeaderPageView interprets raw page data as a header page.
func HeaderPageView(data []byte) *HeaderPage {
	return &HeaderPage{data: data}
}

// Init sets the depth and marks every directory slot invalid.
func (h *HeaderPage) Init(maxDepth uint32) {
	binary.LittleEndian.PutUint32(h.data[0:4], maxDepth)
	for i := uint32(0); i < h.MaxSize(); i++ {
		h.SetDirectoryPageID(i, pagemanager.InvalidPageID)
	}
}

func (h *HeaderPage) MaxDepth() uint32 {
	return binary.LittleEndian.Uint32(h.data[0:4])
}

// MaxSize is the number of directory slots, 2^maxDepth.
func (h *HeaderPage) MaxSize() uint32 {
	return 1 << h.MaxDepth()
}

// HashToDirectoryIndex routes by the top maxDepth bits of the hash.
func (h *HeaderPage) HashToDirectoryIndex(hash uint32) uint32 {
	depth := h.MaxDepth()
	if depth == 0 {
		return 0
	}
	return hash >> (32 - depth)
}

func (h *HeaderPage) DirectoryPageID(idx uint32) pagemanager.PageID {
	if idx >= h.MaxSize() {
		return pagemanager.InvalidPageID
	}
	off := headerMetaSize + idx*4
	return pagemanager.PageID(int32(binary.LittleEndian.Uint32(h.data[off : off+4])))
}

func (h *HeaderPage) SetDirectoryPageID(idx uint32, pageID pagemanager.PageID) {
	if idx >= h.MaxSize() {
		return
	}
	off := headerMetaSize + idx*4
	binary.LittleEndian.PutUint32(h.data[off:off+4], uint32(pageID))
}
