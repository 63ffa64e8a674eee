package buffer

import (
	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

// BasicPageGuard ties a page's pin lifetime to a scope. Dropping the
// guard unpins the page with the dirty flag the guard observed; Drop is
// idempotent, and a guard consumed by an upgrade behaves like one
// already dropped.
type BasicPageGuard struct {
	bpm     *BufferPoolManager
	page    *pagemanager.Page
	isDirty bool
}

// Drop releases the pin. Safe to call any number of times.
func (g *BasicPageGuard) Drop() {
	if g.bpm != nil && g.page != nil {
		g.bpm.UnpinPage(g.page.ID(), g.isDirty)
	}
	g.bpm = nil
	g.page = nil
}

// PageID returns the guarded page's id, or InvalidPageID after Drop.
func (g *BasicPageGuard) PageID() pagemanager.PageID {
	if g.page == nil {
		return pagemanager.InvalidPageID
	}
	return g.page.ID()
}

// Data exposes the page content for reading.
func (g *BasicPageGuard) Data() []byte { return g.page.Data() }

// DataMut exposes the page content for writing and records the write
// intent, so the page is unpinned dirty.
func (g *BasicPageGuard) DataMut() []byte {
	g.isDirty = true
	return g.page.Data()
}

// UpgradeRead acquires the page's read latch and transfers ownership
// to a ReadPageGuard. The receiver is left empty.
func (g *BasicPageGuard) UpgradeRead() *ReadPageGuard {
	if g.page != nil {
		g.page.RLatch()
	}
	rg := &ReadPageGuard{guard: BasicPageGuard{bpm: g.bpm, page: g.page, isDirty: g.isDirty}}
	g.bpm = nil
	g.page = nil
	return rg
}

// UpgradeWrite acquires the page's write latch and transfers ownership
// to a WritePageGuard. The receiver is left empty.
func (g *BasicPageGuard) UpgradeWrite() *WritePageGuard {
	if g.page != nil {
		g.page.WLatch()
	}
	wg := &WritePageGuard{guard: BasicPageGuard{bpm: g.bpm, page: g.page, isDirty: g.isDirty}}
	g.bpm = nil
	g.page = nil
	return wg
}

// ReadPageGuard additionally holds the page's read latch, taken at
// construction and released on Drop before the pin.
type ReadPageGuard struct {
	guard BasicPageGuard
}

func (g *ReadPageGuard) Drop() {
	if g.guard.page != nil {
		g.guard.page.RUnlatch()
	}
	g.guard.Drop()
}

func (g *ReadPageGuard) PageID() pagemanager.PageID { return g.guard.PageID() }

func (g *ReadPageGuard) Data() []byte { return g.guard.Data() }

// WritePageGuard additionally holds the page's write latch. Dropping
// always marks the page dirty: holding a write guard implies potential
// mutation.
type WritePageGuard struct {
	guard BasicPageGuard
}

func (g *WritePageGuard) Drop() {
	if g.guard.page != nil {
		g.guard.isDirty = true
		g.guard.page.WUnlatch()
	}
	g.guard.Drop()
}

func (g *WritePageGuard) PageID() pagemanager.PageID { return g.guard.PageID() }

func (g *WritePageGuard) Data() []byte { return g.guard.Data() }

// DataMut exposes the page content for writing.
func (g *WritePageGuard) DataMut() []byte { return g.guard.DataMut() }

// FetchPageBasic fetches a page wrapped in a pin-only guard.
func (bpm *BufferPoolManager) FetchPageBasic(pageID pagemanager.PageID) (*BasicPageGuard, error) {
	page, err := bpm.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	return &BasicPageGuard{bpm: bpm, page: page}, nil
}

// FetchPageRead fetches a page and acquires its read latch.
func (bpm *BufferPoolManager) FetchPageRead(pageID pagemanager.PageID) (*ReadPageGuard, error) {
	page, err := bpm.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	page.RLatch()
	return &ReadPageGuard{guard: BasicPageGuard{bpm: bpm, page: page}}, nil
}

// FetchPageWrite fetches a page and acquires its write latch.
func (bpm *BufferPoolManager) FetchPageWrite(pageID pagemanager.PageID) (*WritePageGuard, error) {
	page, err := bpm.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	page.WLatch()
	return &WritePageGuard{guard: BasicPageGuard{bpm: bpm, page: page}}, nil
}

// NewPageGuarded allocates a fresh page wrapped in a pin-only guard.
func (bpm *BufferPoolManager) NewPageGuarded() (*BasicPageGuard, error) {
	page, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}
	return &BasicPageGuard{bpm: bpm, page: page}, nil
}
