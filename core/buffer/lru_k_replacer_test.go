package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"

	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

func mustEvict(t *testing.T, r *LRUKReplacer) pagemanager.FrameID {
	t.Helper()
	frameID, err := r.Evict()
	require.NoError(t, err)
	return frameID
}

// TestLRUKReplacer_EvictionOrder walks the replacer through a mixed
// workload and checks every eviction decision: frames with fewer than
// k accesses go first in LRU order, then frames ranked by their
// k-th-most-recent access time.
func TestLRUKReplacer_EvictionOrder(t *testing.T) {
	r := NewLRUKReplacer(7, 2)

	for f := pagemanager.FrameID(1); f <= 6; f++ {
		require.NoError(t, r.RecordAccess(f))
	}
	for f := pagemanager.FrameID(1); f <= 5; f++ {
		require.NoError(t, r.SetEvictable(f, true))
	}
	require.NoError(t, r.SetEvictable(6, false))
	require.Equal(t, 5, r.Size())

	// Frame 1 reaches k accesses and gets a finite distance; the rest
	// stay infinite and are evicted least-recently-used first.
	require.NoError(t, r.RecordAccess(1))
	require.Equal(t, pagemanager.FrameID(2), mustEvict(t, r))
	require.Equal(t, pagemanager.FrameID(3), mustEvict(t, r))
	require.Equal(t, pagemanager.FrameID(4), mustEvict(t, r))
	require.Equal(t, 2, r.Size())

	require.NoError(t, r.RecordAccess(3))
	require.NoError(t, r.RecordAccess(4))
	require.NoError(t, r.RecordAccess(5))
	require.NoError(t, r.RecordAccess(4))
	require.NoError(t, r.SetEvictable(3, true))
	require.NoError(t, r.SetEvictable(4, true))
	require.Equal(t, 4, r.Size())

	// Frame 3 has one post-eviction access, so it is the only infinite
	// distance candidate.
	require.Equal(t, pagemanager.FrameID(3), mustEvict(t, r))
	require.Equal(t, 3, r.Size())

	require.NoError(t, r.SetEvictable(6, true))
	require.Equal(t, 4, r.Size())
	require.Equal(t, pagemanager.FrameID(6), mustEvict(t, r))
	require.Equal(t, 3, r.Size())

	// With frame 1 pinned, frame 5 has the oldest k-th access.
	require.NoError(t, r.SetEvictable(1, false))
	require.Equal(t, 2, r.Size())
	require.Equal(t, pagemanager.FrameID(5), mustEvict(t, r))
	require.Equal(t, 1, r.Size())

	require.NoError(t, r.RecordAccess(1))
	require.NoError(t, r.SetEvictable(1, true))
	require.Equal(t, 2, r.Size())
	require.Equal(t, pagemanager.FrameID(1), mustEvict(t, r))
	require.Equal(t, pagemanager.FrameID(4), mustEvict(t, r))
	require.Equal(t, 0, r.Size())

	_, err := r.Evict()
	require.ErrorIs(t, err, ErrNoEvictableFrame)
}

// TestLRUKReplacer_EvictionForgetsHistory verifies that an evicted
// frame restarts with an empty history when it is reused.
func TestLRUKReplacer_EvictionForgetsHistory(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	require.NoError(t, r.RecordAccess(0))
	require.NoError(t, r.RecordAccess(0))
	require.NoError(t, r.RecordAccess(1))
	require.NoError(t, r.SetEvictable(0, true))
	require.NoError(t, r.SetEvictable(1, true))

	// Frame 1 has infinite distance and goes first despite frame 0
	// being accessed earlier.
	require.Equal(t, pagemanager.FrameID(1), mustEvict(t, r))

	// Re-accessed once after eviction, frame 1 is infinite again and
	// beats frame 0's finite distance.
	require.NoError(t, r.RecordAccess(1))
	require.NoError(t, r.SetEvictable(1, true))
	require.Equal(t, pagemanager.FrameID(1), mustEvict(t, r))
	require.Equal(t, pagemanager.FrameID(0), mustEvict(t, r))
}

func TestLRUKReplacer_SetEvictableIdempotent(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	require.NoError(t, r.RecordAccess(2))
	require.NoError(t, r.SetEvictable(2, true))
	require.NoError(t, r.SetEvictable(2, true))
	require.Equal(t, 1, r.Size())
	require.NoError(t, r.SetEvictable(2, false))
	require.NoError(t, r.SetEvictable(2, false))
	require.Equal(t, 0, r.Size())

	// Untracked frames are ignored.
	require.NoError(t, r.SetEvictable(3, true))
	require.Equal(t, 0, r.Size())
}

func TestLRUKReplacer_RemoveSemantics(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	require.NoError(t, r.RecordAccess(0))
	require.NoError(t, r.RecordAccess(1))
	require.NoError(t, r.SetEvictable(0, true))
	require.Equal(t, 1, r.Size())

	// Removing an untracked frame is a no-op.
	require.NoError(t, r.Remove(3))

	// Removing a tracked non-evictable frame is a contract violation.
	require.ErrorIs(t, r.Remove(1), ErrFrameNotEvictable)

	require.NoError(t, r.Remove(0))
	require.Equal(t, 0, r.Size())
	_, err := r.Evict()
	require.ErrorIs(t, err, ErrNoEvictableFrame)
}

func TestLRUKReplacer_InvalidFrame(t *testing.T) {
	r := NewLRUKReplacer(2, 2)

	require.ErrorIs(t, r.RecordAccess(2), ErrInvalidFrame)
	require.ErrorIs(t, r.RecordAccess(-1), ErrInvalidFrame)
	require.ErrorIs(t, r.SetEvictable(5, true), ErrInvalidFrame)
	require.ErrorIs(t, r.Remove(5), ErrInvalidFrame)
}
