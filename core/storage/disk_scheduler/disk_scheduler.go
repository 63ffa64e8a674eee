// Package diskscheduler serializes page reads and writes onto a single
// background worker. Callers enqueue DiskRequests and block on the
// request's Done channel when they need the result; the worker drains
// the queue strictly in FIFO order, so requests are never reordered or
// batched.
package diskscheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	diskmanager "github.com/kagedb/kagedb/core/storage/disk_manager"
	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

// DiskRequest is a one-shot unit of disk work. The worker consumes it
// exactly once and sends exactly one value on Done before closing it.
// The caller must not reuse Data until it has received from Done.
type DiskRequest struct {
	// IsWrite selects between writing Data to the page and reading
	// the page into Data.
	IsWrite bool
	Data    []byte
	PageID  pagemanager.PageID
	Done    chan error
}

const requestQueueDepth = 64

// DiskScheduler queues page I/O requests and dispatches them to the
// disk manager on one background goroutine.
type DiskScheduler struct {
	disk     diskmanager.DiskManager
	requests chan DiskRequest
	limiter  *rate.Limiter
	logger   *zap.Logger
	wg       sync.WaitGroup
	stop     sync.Once
}

// Option configures a DiskScheduler.
type Option func(*DiskScheduler)

// WithWriteLimit throttles write dispatch to roughly bytesPerSec.
// Reads are never throttled. A zero or negative limit disables
// throttling.
func WithWriteLimit(bytesPerSec int) Option {
	return func(s *DiskScheduler) {
		if bytesPerSec > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
		}
	}
}

// NewDiskScheduler starts the background worker immediately; it runs
// until Shutdown is called.
func NewDiskScheduler(disk diskmanager.DiskManager, logger *zap.Logger, opts ...Option) *DiskScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DiskScheduler{
		disk:     disk,
		requests: make(chan DiskRequest, requestQueueDepth),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// Schedule enqueues a request and returns without waiting for
// completion. Scheduling after Shutdown panics on the closed channel;
// that is a caller contract violation, not a runtime condition.
func (s *DiskScheduler) Schedule(req DiskRequest) {
	s.requests <- req
}

// Shutdown stops accepting requests, drains everything already queued
// and joins the worker. It is safe to call more than once.
func (s *DiskScheduler) Shutdown() {
	s.stop.Do(func() {
		close(s.requests)
	})
	s.wg.Wait()
}

func (s *DiskScheduler) worker() {
	defer s.wg.Done()
	for req := range s.requests {
		var err error
		if req.IsWrite {
			if s.limiter != nil {
				// Throttle by page size; WaitN only errors on a
				// cancelled context, and this one never is.
				_ = s.limiter.WaitN(context.Background(), len(req.Data))
			}
			err = s.disk.WritePage(req.PageID, req.Data)
		} else {
			err = s.disk.ReadPage(req.PageID, req.Data)
		}
		if err != nil {
			s.logger.Error("disk request failed",
				zap.Bool("is_write", req.IsWrite),
				zap.Int32("page_id", int32(req.PageID)),
				zap.Error(err))
		}
		req.Done <- err
		close(req.Done)
	}
}
