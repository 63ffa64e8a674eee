package pagemanager

import (
	"sync"
)

const (
	// DefaultPageSize is the size of a page in bytes.
	DefaultPageSize = 4096

	// InvalidPageID marks a frame that does not hold a physical page.
	InvalidPageID PageID = -1
)

// PageID is the unique identifier of a logical page on disk. IDs are
// allocated monotonically starting from 0; InvalidPageID (-1) is the
// "no page" sentinel.
type PageID int32

// FrameID is an index into the buffer pool's frame array.
type FrameID int32

// Page is the in-memory copy of a disk page plus its bookkeeping
// metadata. The same Page slot is reused for unrelated logical pages
// over time; id identifies whichever logical page is currently
// resident.
//
// The pin count and dirty flag are owned by the buffer pool and
// mutated only under its lock. The latch protects the page *contents*
// and is independently acquired by page guards.
type Page struct {
	id       PageID
	data     []byte
	pinCount int
	isDirty  bool

	// latch guards data: many concurrent readers or one writer.
	latch sync.RWMutex
}

// NewPage creates an empty page slot of the given size.
func NewPage(id PageID, size int) *Page {
	return &Page{
		id:   id,
		data: make([]byte, size),
	}
}

// Reset clears the page's metadata and zeroes its memory so a stale
// logical page never leaks into the slot's next occupant.
func (p *Page) Reset() {
	p.id = InvalidPageID
	p.pinCount = 0
	p.isDirty = false
	for i := range p.data {
		p.data[i] = 0
	}
}

func (p *Page) Data() []byte        { return p.data }
func (p *Page) ID() PageID          { return p.id }
func (p *Page) SetID(id PageID)     { p.id = id }
func (p *Page) IsDirty() bool       { return p.isDirty }
func (p *Page) SetDirty(dirty bool) { p.isDirty = dirty }
func (p *Page) PinCount() int       { return p.pinCount }
func (p *Page) SetPinCount(n int)   { p.pinCount = n }

func (p *Page) Pin() { p.pinCount++ }

func (p *Page) Unpin() {
	if p.pinCount > 0 {
		p.pinCount--
	}
}

// RLatch acquires the page's shared (read) latch.
func (p *Page) RLatch() { p.latch.RLock() }

// RUnlatch releases the page's shared (read) latch.
func (p *Page) RUnlatch() { p.latch.RUnlock() }

// WLatch acquires the page's exclusive (write) latch.
func (p *Page) WLatch() { p.latch.Lock() }

// WUnlatch releases the page's exclusive (write) latch.
func (p *Page) WUnlatch() { p.latch.Unlock() }
