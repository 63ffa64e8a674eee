// Package buffer owns the fixed array of in-memory page frames and the
// policy for filling and reclaiming them. All physical I/O goes through
// the disk scheduler; the buffer pool always awaits a request's
// completion before returning, so callers see synchronous semantics.
package buffer

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	internaltelemetry "github.com/kagedb/kagedb/internal/telemetry"

	diskmanager "github.com/kagedb/kagedb/core/storage/disk_manager"
	diskscheduler "github.com/kagedb/kagedb/core/storage/disk_scheduler"
	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

// BufferPoolManager maps logical page ids onto a fixed set of frames,
// evicting with the LRU-K replacer when the free list is exhausted.
// Every public method serializes on one mutex for the duration of the
// call; the lock is not held across a page's checkout.
type BufferPoolManager struct {
	mu         sync.Mutex
	poolSize   int
	pages      []*pagemanager.Page
	pageTable  map[pagemanager.PageID]pagemanager.FrameID
	freeList   []pagemanager.FrameID
	replacer   *LRUKReplacer
	scheduler  *diskscheduler.DiskScheduler
	nextPageID atomic.Int32
	logger     *zap.Logger
	metrics    *internaltelemetry.StorageMetrics
}

// NewBufferPoolManager creates a pool of poolSize frames over the given
// disk manager, with an LRU-K replacer using replacerK. metrics may be
// nil to disable instrumentation.
func NewBufferPoolManager(poolSize, replacerK int, disk diskmanager.DiskManager,
	logger *zap.Logger, metrics *internaltelemetry.StorageMetrics) *BufferPoolManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	bpm := &BufferPoolManager{
		poolSize:  poolSize,
		pages:     make([]*pagemanager.Page, poolSize),
		pageTable: make(map[pagemanager.PageID]pagemanager.FrameID),
		freeList:  make([]pagemanager.FrameID, 0, poolSize),
		replacer:  NewLRUKReplacer(poolSize, replacerK),
		scheduler: diskscheduler.NewDiskScheduler(disk, logger),
		logger:    logger,
		metrics:   metrics,
	}
	for i := 0; i < poolSize; i++ {
		bpm.pages[i] = pagemanager.NewPage(pagemanager.InvalidPageID, disk.PageSize())
		bpm.freeList = append(bpm.freeList, pagemanager.FrameID(i))
	}
	return bpm
}

// GetPoolSize returns the number of frames in the pool.
func (bpm *BufferPoolManager) GetPoolSize() int { return bpm.poolSize }

// allocatePage hands out the next logical page id.
func (bpm *BufferPoolManager) allocatePage() pagemanager.PageID {
	return pagemanager.PageID(bpm.nextPageID.Add(1) - 1)
}

// doDiskIO schedules one request and blocks until the worker resolves
// it. Must be called with bpm.mu held; the lock stays held, which is
// the deliberate correctness-over-throughput tradeoff of this pool.
func (bpm *BufferPoolManager) doDiskIO(isWrite bool, pageID pagemanager.PageID, data []byte) error {
	done := make(chan error, 1)
	bpm.scheduler.Schedule(diskscheduler.DiskRequest{
		IsWrite: isWrite,
		Data:    data,
		PageID:  pageID,
		Done:    done,
	})
	return <-done
}

// getFrame obtains a usable frame: free list first, else an eviction
// victim. A dirty victim is written back synchronously before the
// frame is handed out. The returned frame's page is reset and no
// longer in the page table. Must be called with bpm.mu held.
func (bpm *BufferPoolManager) getFrame() (pagemanager.FrameID, *pagemanager.Page, error) {
	ctx := context.Background()

	if n := len(bpm.freeList); n > 0 {
		frameID := bpm.freeList[n-1]
		bpm.freeList = bpm.freeList[:n-1]
		return frameID, bpm.pages[frameID], nil
	}

	frameID, err := bpm.replacer.Evict()
	if err != nil {
		return -1, nil, ErrBufferPoolFull
	}
	bpm.metrics.Eviction(ctx)
	victim := bpm.pages[frameID]
	if victim.IsDirty() {
		if err := bpm.doDiskIO(true, victim.ID(), victim.Data()); err != nil {
			bpm.logger.Error("dirty victim writeback failed",
				zap.Int32("page_id", int32(victim.ID())), zap.Error(err))
			return -1, nil, err
		}
		bpm.metrics.DirtyWriteback(ctx)
		bpm.metrics.DiskWrite(ctx)
		victim.SetDirty(false)
	}
	delete(bpm.pageTable, victim.ID())
	victim.Reset()
	return frameID, victim, nil
}

// NewPage allocates a fresh logical page id in a reset frame, pinned
// with count 1. It fails with ErrBufferPoolFull iff no free frame
// exists and nothing is evictable; in that case no state changes.
func (bpm *BufferPoolManager) NewPage() (*pagemanager.Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, page, err := bpm.getFrame()
	if err != nil {
		return nil, err
	}
	pageID := bpm.allocatePage()
	bpm.pageTable[pageID] = frameID
	page.SetID(pageID)
	page.SetPinCount(1)
	bpm.metrics.PinDelta(context.Background(), 1)
	_ = bpm.replacer.RecordAccess(frameID)
	_ = bpm.replacer.SetEvictable(frameID, false)
	return page, nil
}

// FetchPage returns the resident page for pageID, loading it from disk
// into a frame when absent. The returned page is pinned; callers must
// UnpinPage (or use a guard) when done.
func (bpm *BufferPoolManager) FetchPage(pageID pagemanager.PageID) (*pagemanager.Page, error) {
	if pageID == pagemanager.InvalidPageID {
		return nil, ErrPageNotFound
	}
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	ctx := context.Background()

	if frameID, ok := bpm.pageTable[pageID]; ok {
		page := bpm.pages[frameID]
		page.Pin()
		bpm.metrics.Hit(ctx)
		bpm.metrics.PinDelta(ctx, 1)
		_ = bpm.replacer.RecordAccess(frameID)
		_ = bpm.replacer.SetEvictable(frameID, false)
		return page, nil
	}

	frameID, page, err := bpm.getFrame()
	if err != nil {
		return nil, err
	}
	if err := bpm.doDiskIO(false, pageID, page.Data()); err != nil {
		// Frame stays out of the page table; hand it back.
		bpm.freeList = append(bpm.freeList, frameID)
		return nil, err
	}
	bpm.metrics.Miss(ctx)
	bpm.metrics.DiskRead(ctx)
	bpm.metrics.PinDelta(ctx, 1)
	bpm.pageTable[pageID] = frameID
	page.SetID(pageID)
	page.SetPinCount(1)
	_ = bpm.replacer.RecordAccess(frameID)
	_ = bpm.replacer.SetEvictable(frameID, false)
	return page, nil
}

// UnpinPage decrements a page's pin count, merging in the caller's
// dirty flag. When the count reaches zero the frame becomes evictable.
// It returns false if the page is not resident or was not pinned.
func (bpm *BufferPoolManager) UnpinPage(pageID pagemanager.PageID, isDirty bool) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		return false
	}
	page := bpm.pages[frameID]
	page.SetDirty(isDirty || page.IsDirty())
	if page.PinCount() == 0 {
		return false
	}
	page.Unpin()
	bpm.metrics.PinDelta(context.Background(), -1)
	if page.PinCount() == 0 {
		_ = bpm.replacer.SetEvictable(frameID, true)
	}
	return true
}

// FlushPage writes the page to disk regardless of its dirty or pin
// state and clears the dirty flag. It returns false if the page is not
// resident.
func (bpm *BufferPoolManager) FlushPage(pageID pagemanager.PageID) bool {
	if pageID == pagemanager.InvalidPageID {
		return false
	}
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		return false
	}
	page := bpm.pages[frameID]
	if err := bpm.doDiskIO(true, page.ID(), page.Data()); err != nil {
		bpm.logger.Error("flush failed", zap.Int32("page_id", int32(pageID)), zap.Error(err))
		return false
	}
	bpm.metrics.DiskWrite(context.Background())
	page.SetDirty(false)
	return true
}

// FlushAllPages unconditionally flushes every resident page.
func (bpm *BufferPoolManager) FlushAllPages() {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	for _, page := range bpm.pages {
		if page.ID() == pagemanager.InvalidPageID {
			continue
		}
		if err := bpm.doDiskIO(true, page.ID(), page.Data()); err != nil {
			bpm.logger.Error("flush failed", zap.Int32("page_id", int32(page.ID())), zap.Error(err))
			continue
		}
		bpm.metrics.DiskWrite(context.Background())
		page.SetDirty(false)
	}
}

// DeletePage removes a page from the pool and returns its frame to the
// free list. Deleting a page that is not resident succeeds trivially;
// deleting a pinned page fails and leaves all state unchanged. The
// page id is logically deallocated; the disk layer treats that as a
// no-op.
func (bpm *BufferPoolManager) DeletePage(pageID pagemanager.PageID) bool {
	if pageID == pagemanager.InvalidPageID {
		return true
	}
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		return true
	}
	page := bpm.pages[frameID]
	if page.PinCount() > 0 {
		return false
	}
	delete(bpm.pageTable, pageID)
	_ = bpm.replacer.Remove(frameID)
	bpm.freeList = append(bpm.freeList, frameID)
	page.Reset()
	return true
}

// Close flushes every resident page and stops the disk scheduler's
// worker.
func (bpm *BufferPoolManager) Close() {
	bpm.FlushAllPages()
	bpm.scheduler.Shutdown()
}
