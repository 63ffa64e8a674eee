package diskmanager

import (
	"fmt"
	"sync"

	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

// MemDiskManager keeps pages in a map instead of a file. It backs unit
// tests and any caller that wants buffer pool semantics without disk
// I/O.
type MemDiskManager struct {
	mu       sync.Mutex
	pageSize int
	pages    map[pagemanager.PageID][]byte
	reads    int
	writes   int
}

func NewMemDiskManager(pageSize int) *MemDiskManager {
	return &MemDiskManager{
		pageSize: pageSize,
		pages:    make(map[pagemanager.PageID][]byte),
	}
}

func (dm *MemDiskManager) PageSize() int { return dm.pageSize }

func (dm *MemDiskManager) ReadPage(pageID pagemanager.PageID, data []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if pageID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageID, pageID)
	}
	if len(data) != dm.pageSize {
		return fmt.Errorf("%w: buffer %d, page %d", ErrBadPageSize, len(data), dm.pageSize)
	}
	dm.reads++
	stored, ok := dm.pages[pageID]
	if !ok {
		for i := range data {
			data[i] = 0
		}
		return nil
	}
	copy(data, stored)
	return nil
}

func (dm *MemDiskManager) WritePage(pageID pagemanager.PageID, data []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if pageID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageID, pageID)
	}
	if len(data) != dm.pageSize {
		return fmt.Errorf("%w: buffer %d, page %d", ErrBadPageSize, len(data), dm.pageSize)
	}
	dm.writes++
	stored := make([]byte, dm.pageSize)
	copy(stored, data)
	dm.pages[pageID] = stored
	return nil
}

// WriteCount reports how many WritePage calls have been made; tests use
// it to assert dirty-writeback behavior.
func (dm *MemDiskManager) WriteCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.writes
}

// ReadCount reports how many ReadPage calls have been made.
func (dm *MemDiskManager) ReadCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.reads
}

// PageContent returns a copy of the stored content of a page, or nil if
// the page was never written.
func (dm *MemDiskManager) PageContent(pageID pagemanager.PageID) []byte {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	stored, ok := dm.pages[pageID]
	if !ok {
		return nil
	}
	out := make([]byte, len(stored))
	copy(out, stored)
	return out
}

func (dm *MemDiskManager) Close() error { return nil }
