// Package exthash implements a disk-backed extendible hash table over
// the buffer pool: a header page routing by high hash bits to directory
// pages, which route by low hash bits to bucket pages holding the
// entries. All three page types are byte-layout views over raw page
// data, so the structure survives process restarts unchanged.
package exthash

import (
	"go.uber.org/zap"

	"github.com/kagedb/kagedb/core/buffer"
	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

// DiskExtendibleHashTable maps unique keys to single values, growing
// and shrinking bucket by bucket. Keys and values are fixed-width via
// their codecs; the same 32-bit hash routes at every level.
type DiskExtendibleHashTable[K any, V any] struct {
	name          string
	bpm           *buffer.BufferPoolManager
	headerPageID  pagemanager.PageID
	headerDepth   uint32
	dirDepth      uint32
	bucketMaxSize uint32
	keyCodec      Codec[K]
	valCodec      Codec[V]
	cmp           Comparator[K]
	hash          HashFunc[K]
	logger        *zap.Logger
}

// Options tunes table geometry. Zero values fall back to the maximum
// depths and the largest bucket that fits a page.
type Options struct {
	HeaderMaxDepth    uint32
	DirectoryMaxDepth uint32
	BucketMaxSize     uint32
}

// New creates an empty table and materializes its header page. The
// hash function may be nil, in which case the key codec's encoding is
// hashed with xxhash.
func New[K any, V any](name string, bpm *buffer.BufferPoolManager,
	keyCodec Codec[K], valCodec Codec[V], cmp Comparator[K], hash HashFunc[K],
	pageSize int, opts Options, logger *zap.Logger) (*DiskExtendibleHashTable[K, V], error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hash == nil {
		hash = DefaultHashFunc(keyCodec)
	}
	if opts.HeaderMaxDepth == 0 {
		opts.HeaderMaxDepth = MaxHeaderDepth
	}
	if opts.DirectoryMaxDepth == 0 {
		opts.DirectoryMaxDepth = MaxDirectoryDepth
	}
	if opts.HeaderMaxDepth > MaxHeaderDepth || opts.DirectoryMaxDepth > MaxDirectoryDepth {
		return nil, ErrDepthTooLarge
	}
	maxBucket := MaxBucketSize(pageSize, keyCodec.Size(), valCodec.Size())
	if maxBucket < 1 {
		return nil, ErrEntryTooLarge
	}
	if opts.BucketMaxSize == 0 || opts.BucketMaxSize > uint32(maxBucket) {
		opts.BucketMaxSize = uint32(maxBucket)
	}

	ht := &DiskExtendibleHashTable[K, V]{
		name:          name,
		bpm:           bpm,
		headerDepth:   opts.HeaderMaxDepth,
		dirDepth:      opts.DirectoryMaxDepth,
		bucketMaxSize: opts.BucketMaxSize,
		keyCodec:      keyCodec,
		valCodec:      valCodec,
		cmp:           cmp,
		hash:          hash,
		logger:        logger,
	}

	guard, err := bpm.NewPageGuarded()
	if err != nil {
		return nil, err
	}
	wg := guard.UpgradeWrite()
	ht.headerPageID = wg.PageID()
	HeaderPageView(wg.DataMut()).Init(ht.headerDepth)
	wg.Drop()
	logger.Info("hash table created",
		zap.String("index", name),
		zap.Int32("header_page_id", int32(ht.headerPageID)),
		zap.Uint32("bucket_max_size", ht.bucketMaxSize))
	return ht, nil
}

// HeaderPageID returns the root page id, the only state needed to
// reopen the table.
func (ht *DiskExtendibleHashTable[K, V]) HeaderPageID() pagemanager.PageID {
	return ht.headerPageID
}

// GetValue returns the values stored for key. Keys are unique, so the
// slice holds at most one element; an absent key yields an empty slice
// and no error.
func (ht *DiskExtendibleHashTable[K, V]) GetValue(key K) ([]V, error) {
	hash := ht.hash(key)

	headerGuard, err := ht.bpm.FetchPageRead(ht.headerPageID)
	if err != nil {
		return nil, err
	}
	header := HeaderPageView(headerGuard.Data())
	dirPageID := header.DirectoryPageID(header.HashToDirectoryIndex(hash))
	if dirPageID == pagemanager.InvalidPageID {
		headerGuard.Drop()
		return nil, nil
	}

	dirGuard, err := ht.bpm.FetchPageRead(dirPageID)
	headerGuard.Drop()
	if err != nil {
		return nil, err
	}
	dir := DirectoryPageView(dirGuard.Data())
	bucketPageID := dir.BucketPageID(dir.HashToBucketIndex(hash))
	if bucketPageID == pagemanager.InvalidPageID {
		dirGuard.Drop()
		return nil, nil
	}

	bucketGuard, err := ht.bpm.FetchPageRead(bucketPageID)
	dirGuard.Drop()
	if err != nil {
		return nil, err
	}
	defer bucketGuard.Drop()
	bucket := BucketPageView(bucketGuard.Data(), ht.keyCodec, ht.valCodec, ht.cmp)
	if v, ok := bucket.Lookup(key); ok {
		return []V{v}, nil
	}
	return nil, nil
}

// Insert stores key→value. Duplicate keys are rejected with
// ErrKeyAlreadyExists. When the target bucket is full the directory
// doubles (up to its max depth) and the bucket splits, repeatedly if
// the hashes keep colliding; ErrDirectoryFull reports the permanent
// case where the directory can no longer grow.
func (ht *DiskExtendibleHashTable[K, V]) Insert(key K, value V) error {
	hash := ht.hash(key)

	headerGuard, err := ht.bpm.FetchPageWrite(ht.headerPageID)
	if err != nil {
		return err
	}
	header := HeaderPageView(headerGuard.DataMut())
	dirIdx := header.HashToDirectoryIndex(hash)
	dirPageID := header.DirectoryPageID(dirIdx)
	if dirPageID == pagemanager.InvalidPageID {
		dirGuard, err := ht.bpm.NewPageGuarded()
		if err != nil {
			headerGuard.Drop()
			return err
		}
		wg := dirGuard.UpgradeWrite()
		DirectoryPageView(wg.DataMut()).Init(ht.dirDepth)
		dirPageID = wg.PageID()
		wg.Drop()
		header.SetDirectoryPageID(dirIdx, dirPageID)
	}

	dirGuard, err := ht.bpm.FetchPageWrite(dirPageID)
	headerGuard.Drop()
	if err != nil {
		return err
	}
	defer dirGuard.Drop()
	dir := DirectoryPageView(dirGuard.DataMut())

	for {
		bucketIdx := dir.HashToBucketIndex(hash)
		bucketPageID := dir.BucketPageID(bucketIdx)
		if bucketPageID == pagemanager.InvalidPageID {
			guard, err := ht.bpm.NewPageGuarded()
			if err != nil {
				return err
			}
			wg := guard.UpgradeWrite()
			BucketPageView(wg.DataMut(), ht.keyCodec, ht.valCodec, ht.cmp).Init(ht.bucketMaxSize)
			bucketPageID = wg.PageID()
			wg.Drop()
			dir.SetBucketPageID(bucketIdx, bucketPageID)
			dir.SetLocalDepth(bucketIdx, 0)
		}

		bucketGuard, err := ht.bpm.FetchPageWrite(bucketPageID)
		if err != nil {
			return err
		}
		bucket := BucketPageView(bucketGuard.DataMut(), ht.keyCodec, ht.valCodec, ht.cmp)
		if _, ok := bucket.Lookup(key); ok {
			bucketGuard.Drop()
			return ErrKeyAlreadyExists
		}
		if !bucket.IsFull() {
			bucket.Insert(key, value)
			bucketGuard.Drop()
			return nil
		}

		// Bucket full: grow the directory if this bucket is at the
		// global depth, then split and retry.
		ld := dir.LocalDepth(bucketIdx)
		if ld == dir.GlobalDepth() {
			if dir.GlobalDepth() >= dir.MaxDepth() {
				bucketGuard.Drop()
				return ErrDirectoryFull
			}
			dir.IncrGlobalDepth()
			bucketIdx = dir.HashToBucketIndex(hash)
		}

		if err := ht.splitBucket(dir, bucket, bucketPageID, ld); err != nil {
			bucketGuard.Drop()
			return err
		}
		bucketGuard.Drop()
	}
}

// splitBucket allocates a sibling for the full bucket, repoints every
// directory slot aliasing the old page (slots with the new depth bit
// set move to the sibling; all aliases get the new local depth) and
// redistributes entries by rehashing. The caller holds write guards on
// the directory and the old bucket.
func (ht *DiskExtendibleHashTable[K, V]) splitBucket(dir *DirectoryPage,
	bucket *BucketPage[K, V], bucketPageID pagemanager.PageID, ld uint32) error {
	guard, err := ht.bpm.NewPageGuarded()
	if err != nil {
		return err
	}
	wg := guard.UpgradeWrite()
	defer wg.Drop()
	newPageID := wg.PageID()
	sibling := BucketPageView(wg.DataMut(), ht.keyCodec, ht.valCodec, ht.cmp)
	sibling.Init(ht.bucketMaxSize)

	newLD := uint8(ld + 1)
	for i := uint32(0); i < dir.Size(); i++ {
		if dir.BucketPageID(i) != bucketPageID {
			continue
		}
		if i&(1<<ld) != 0 {
			dir.SetBucketPageID(i, newPageID)
		}
		dir.SetLocalDepth(i, newLD)
	}

	for i := uint32(0); i < bucket.Size(); {
		k := bucket.KeyAt(i)
		if dir.BucketPageID(dir.HashToBucketIndex(ht.hash(k))) == newPageID {
			sibling.Insert(k, bucket.ValueAt(i))
			bucket.RemoveAt(i)
		} else {
			i++
		}
	}
	ht.logger.Debug("bucket split",
		zap.String("index", ht.name),
		zap.Int32("old_page_id", int32(bucketPageID)),
		zap.Int32("new_page_id", int32(newPageID)),
		zap.Uint8("local_depth", newLD))
	return nil
}

// Remove deletes key's entry. An absent key yields ErrKeyNotFound.
// After the delete, the bucket merges with its buddy while both share
// a local depth and one of them is empty, and the directory halves
// while its upper half is redundant.
func (ht *DiskExtendibleHashTable[K, V]) Remove(key K) error {
	hash := ht.hash(key)

	headerGuard, err := ht.bpm.FetchPageRead(ht.headerPageID)
	if err != nil {
		return err
	}
	header := HeaderPageView(headerGuard.Data())
	dirPageID := header.DirectoryPageID(header.HashToDirectoryIndex(hash))
	headerGuard.Drop()
	if dirPageID == pagemanager.InvalidPageID {
		return ErrKeyNotFound
	}

	dirGuard, err := ht.bpm.FetchPageWrite(dirPageID)
	if err != nil {
		return err
	}
	defer dirGuard.Drop()
	dir := DirectoryPageView(dirGuard.DataMut())

	bucketIdx := dir.HashToBucketIndex(hash)
	bucketPageID := dir.BucketPageID(bucketIdx)
	if bucketPageID == pagemanager.InvalidPageID {
		return ErrKeyNotFound
	}

	bucketGuard, err := ht.bpm.FetchPageWrite(bucketPageID)
	if err != nil {
		return err
	}
	bucket := BucketPageView(bucketGuard.DataMut(), ht.keyCodec, ht.valCodec, ht.cmp)
	if !bucket.Remove(key) {
		bucketGuard.Drop()
		return ErrKeyNotFound
	}

	// Merge with the buddy as long as depths match and one side is
	// empty. Guards on a condemned page must be dropped before
	// DeletePage: pinned pages cannot be deleted.
	for {
		ld := dir.LocalDepth(bucketIdx)
		if ld == 0 {
			break
		}
		buddyIdx := bucketIdx ^ (1 << (ld - 1))
		if dir.LocalDepth(buddyIdx) != ld {
			break
		}
		buddyPageID := dir.BucketPageID(buddyIdx)
		if buddyPageID == bucketPageID || buddyPageID == pagemanager.InvalidPageID {
			break
		}

		buddyGuard, err := ht.bpm.FetchPageWrite(buddyPageID)
		if err != nil {
			bucketGuard.Drop()
			return err
		}
		buddy := BucketPageView(buddyGuard.DataMut(), ht.keyCodec, ht.valCodec, ht.cmp)
		if !bucket.IsEmpty() && !buddy.IsEmpty() {
			buddyGuard.Drop()
			break
		}

		survivorID, condemnedID := bucketPageID, buddyPageID
		if bucket.IsEmpty() {
			survivorID, condemnedID = buddyPageID, bucketPageID
		}
		for i := uint32(0); i < dir.Size(); i++ {
			pid := dir.BucketPageID(i)
			if pid == condemnedID || pid == survivorID {
				dir.SetBucketPageID(i, survivorID)
				dir.SetLocalDepth(i, uint8(ld-1))
			}
		}
		bucketGuard.Drop()
		buddyGuard.Drop()
		ht.bpm.DeletePage(condemnedID)
		ht.logger.Debug("bucket merge",
			zap.String("index", ht.name),
			zap.Int32("survivor_page_id", int32(survivorID)),
			zap.Int32("condemned_page_id", int32(condemnedID)),
			zap.Uint32("local_depth", ld-1))

		bucketIdx = dir.HashToBucketIndex(hash)
		bucketPageID = survivorID
		bucketGuard, err = ht.bpm.FetchPageWrite(bucketPageID)
		if err != nil {
			return err
		}
		bucket = BucketPageView(bucketGuard.DataMut(), ht.keyCodec, ht.valCodec, ht.cmp)
	}
	bucketGuard.Drop()

	for dir.CanShrink() {
		dir.DecrGlobalDepth()
	}
	return nil
}
