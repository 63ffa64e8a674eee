package buffer

import (
	"container/list"
	"fmt"
	"sync"

	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

// LRUKReplacer tracks per-frame access history and selects eviction
// victims by backward k-distance: the difference between the current
// logical timestamp and the timestamp of a frame's k-th most recent
// access. A frame with fewer than k recorded accesses has infinite
// distance; the infinite-distance frames are ranked among themselves by
// classic LRU. Only frames explicitly marked evictable are candidates.
type LRUKReplacer struct {
	mu        sync.Mutex
	numFrames int
	k         int
	timestamp uint64
	curSize   int

	nodes map[pagemanager.FrameID]*lruKNode

	// historyQueue holds frames with fewer than k accesses, most
	// recently used at the front. cacheQueue holds frames with k or
	// more accesses, ordered by ascending k-th-most-recent timestamp
	// so the largest backward k-distance sits at the front.
	historyQueue *list.List
	cacheQueue   *list.List
}

type lruKNode struct {
	frameID   pagemanager.FrameID
	history   []uint64 // up to k most recent access timestamps, oldest first
	accesses  int
	evictable bool
	elem      *list.Element
	inCache   bool
}

// NewLRUKReplacer creates a replacer for numFrames frames using the
// given k.
func NewLRUKReplacer(numFrames, k int) *LRUKReplacer {
	return &LRUKReplacer{
		numFrames:    numFrames,
		k:            k,
		nodes:        make(map[pagemanager.FrameID]*lruKNode),
		historyQueue: list.New(),
		cacheQueue:   list.New(),
	}
}

func (r *LRUKReplacer) checkFrame(frameID pagemanager.FrameID) error {
	if frameID < 0 || int(frameID) >= r.numFrames {
		return fmt.Errorf("%w: %d (num frames %d)", ErrInvalidFrame, frameID, r.numFrames)
	}
	return nil
}

// RecordAccess appends the current logical timestamp to the frame's
// history, trimmed to the k most recent entries.
func (r *LRUKReplacer) RecordAccess(frameID pagemanager.FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkFrame(frameID); err != nil {
		return err
	}

	r.timestamp++
	node, ok := r.nodes[frameID]
	if !ok {
		node = &lruKNode{frameID: frameID}
		r.nodes[frameID] = node
	}
	node.accesses++
	node.history = append(node.history, r.timestamp)
	if len(node.history) > r.k {
		node.history = node.history[1:]
	}

	switch {
	case node.accesses < r.k:
		// Still infinite distance: keep LRU order in the history queue.
		if node.elem != nil {
			r.historyQueue.MoveToFront(node.elem)
		} else {
			node.elem = r.historyQueue.PushFront(node)
		}
	case node.accesses == r.k:
		// Graduates from the history queue into the cache queue.
		if node.elem != nil {
			r.historyQueue.Remove(node.elem)
		}
		node.inCache = true
		node.elem = r.insertByKthTime(node)
	default:
		// Already in the cache queue: reposition by the new k-th time.
		r.cacheQueue.Remove(node.elem)
		node.elem = r.insertByKthTime(node)
	}
	return nil
}

// insertByKthTime places node into cacheQueue keeping ascending order
// of the k-th most recent access timestamp (history[0] once trimmed).
func (r *LRUKReplacer) insertByKthTime(node *lruKNode) *list.Element {
	kth := node.history[0]
	for e := r.cacheQueue.Back(); e != nil; e = e.Prev() {
		if e.Value.(*lruKNode).history[0] <= kth {
			return r.cacheQueue.InsertAfter(node, e)
		}
	}
	return r.cacheQueue.PushFront(node)
}

// Evict selects the evictable frame with the largest backward
// k-distance, discards its history and returns its id. It fails with
// ErrNoEvictableFrame when nothing can be evicted.
func (r *LRUKReplacer) Evict() (pagemanager.FrameID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Infinite-distance frames first, least recently used at the back.
	for e := r.historyQueue.Back(); e != nil; e = e.Prev() {
		node := e.Value.(*lruKNode)
		if node.evictable {
			r.historyQueue.Remove(e)
			delete(r.nodes, node.frameID)
			r.curSize--
			return node.frameID, nil
		}
	}
	// Then finite distances, largest first.
	for e := r.cacheQueue.Front(); e != nil; e = e.Next() {
		node := e.Value.(*lruKNode)
		if node.evictable {
			r.cacheQueue.Remove(e)
			delete(r.nodes, node.frameID)
			r.curSize--
			return node.frameID, nil
		}
	}
	return -1, ErrNoEvictableFrame
}

// SetEvictable toggles a frame's membership in the evictable set.
// Repeating the current value is a no-op on the replacer size. Frames
// with no recorded access are ignored.
func (r *LRUKReplacer) SetEvictable(frameID pagemanager.FrameID, evictable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkFrame(frameID); err != nil {
		return err
	}
	node, ok := r.nodes[frameID]
	if !ok {
		return nil
	}
	if node.evictable == evictable {
		return nil
	}
	node.evictable = evictable
	if evictable {
		r.curSize++
	} else {
		r.curSize--
	}
	return nil
}

// Remove discards all history for a frame regardless of its distance.
// The buffer pool calls it when a frame is repurposed outside normal
// eviction, i.e. on explicit page deletion. Removing a tracked frame
// that is not evictable is a contract violation.
func (r *LRUKReplacer) Remove(frameID pagemanager.FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkFrame(frameID); err != nil {
		return err
	}
	node, ok := r.nodes[frameID]
	if !ok {
		return nil
	}
	if !node.evictable {
		return fmt.Errorf("%w: %d", ErrFrameNotEvictable, frameID)
	}
	if node.inCache {
		r.cacheQueue.Remove(node.elem)
	} else {
		r.historyQueue.Remove(node.elem)
	}
	delete(r.nodes, frameID)
	r.curSize--
	return nil
}

// Size reports the number of evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.curSize
}
