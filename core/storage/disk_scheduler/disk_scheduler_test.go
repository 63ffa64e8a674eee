package diskscheduler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	diskmanager "github.com/kagedb/kagedb/core/storage/disk_manager"
	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

func setupScheduler(t *testing.T, opts ...Option) (*DiskScheduler, *diskmanager.MemDiskManager) {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	disk := diskmanager.NewMemDiskManager(pagemanager.DefaultPageSize)
	s := NewDiskScheduler(disk, logger, opts...)
	t.Cleanup(s.Shutdown)
	return s, disk
}

func TestDiskScheduler_WriteThenRead(t *testing.T) {
	s, _ := setupScheduler(t)

	out := make([]byte, pagemanager.DefaultPageSize)
	copy(out, []byte("A test string."))
	in := make([]byte, pagemanager.DefaultPageSize)

	writeDone := make(chan error, 1)
	readDone := make(chan error, 1)
	s.Schedule(DiskRequest{IsWrite: true, Data: out, PageID: 0, Done: writeDone})
	s.Schedule(DiskRequest{IsWrite: false, Data: in, PageID: 0, Done: readDone})

	require.NoError(t, <-writeDone)
	require.NoError(t, <-readDone)
	require.Equal(t, out, in)
}

// The worker drains the queue strictly in order, so the last write to
// a page always wins.
func TestDiskScheduler_FIFOOrdering(t *testing.T) {
	s, disk := setupScheduler(t)

	const n = 50
	dones := make([]chan error, n)
	for i := 0; i < n; i++ {
		data := make([]byte, pagemanager.DefaultPageSize)
		copy(data, fmt.Sprintf("version-%02d", i))
		dones[i] = make(chan error, 1)
		s.Schedule(DiskRequest{IsWrite: true, Data: data, PageID: 7, Done: dones[i]})
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-dones[i])
	}
	require.Equal(t, []byte(fmt.Sprintf("version-%02d", n-1)), disk.PageContent(7)[:10])
}

func TestDiskScheduler_ErrorPropagates(t *testing.T) {
	s, _ := setupScheduler(t)

	done := make(chan error, 1)
	short := make([]byte, 16) // wrong buffer size
	s.Schedule(DiskRequest{IsWrite: true, Data: short, PageID: 0, Done: done})
	require.ErrorIs(t, <-done, diskmanager.ErrBadPageSize)

	done = make(chan error, 1)
	data := make([]byte, pagemanager.DefaultPageSize)
	s.Schedule(DiskRequest{IsWrite: true, Data: data, PageID: -5, Done: done})
	require.ErrorIs(t, <-done, diskmanager.ErrInvalidPageID)
}

// The Done channel is closed after its single result, so a second
// receive returns immediately.
func TestDiskScheduler_DoneClosedAfterResult(t *testing.T) {
	s, _ := setupScheduler(t)

	done := make(chan error, 1)
	data := make([]byte, pagemanager.DefaultPageSize)
	s.Schedule(DiskRequest{IsWrite: true, Data: data, PageID: 1, Done: done})
	require.NoError(t, <-done)
	_, ok := <-done
	require.False(t, ok)
}

func TestDiskScheduler_ShutdownDrainsQueue(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	disk := diskmanager.NewMemDiskManager(pagemanager.DefaultPageSize)
	s := NewDiskScheduler(disk, logger)

	const n = 20
	dones := make([]chan error, n)
	for i := 0; i < n; i++ {
		data := make([]byte, pagemanager.DefaultPageSize)
		dones[i] = make(chan error, 1)
		s.Schedule(DiskRequest{IsWrite: true, Data: data, PageID: pagemanager.PageID(i), Done: dones[i]})
	}

	// Shutdown must complete every queued request, and be safe to
	// repeat.
	s.Shutdown()
	s.Shutdown()
	for i := 0; i < n; i++ {
		require.NoError(t, <-dones[i])
	}
	require.Equal(t, n, disk.WriteCount())
}

func TestDiskScheduler_WriteLimitStillCompletes(t *testing.T) {
	// A generous limit must not change semantics, only pacing.
	s, disk := setupScheduler(t, WithWriteLimit(64*1024*1024))

	for i := 0; i < 10; i++ {
		done := make(chan error, 1)
		data := make([]byte, pagemanager.DefaultPageSize)
		s.Schedule(DiskRequest{IsWrite: true, Data: data, PageID: pagemanager.PageID(i), Done: done})
		require.NoError(t, <-done)
	}
	require.Equal(t, 10, disk.WriteCount())
}
