package buffer

import "errors"

var (
	ErrBufferPoolFull    = errors.New("buffer pool is full and no pages can be evicted")
	ErrPageNotFound      = errors.New("page not found in buffer pool")
	ErrNoEvictableFrame  = errors.New("no frame is evictable")
	ErrInvalidFrame      = errors.New("frame id out of range")
	ErrFrameNotEvictable = errors.New("frame is not evictable")
)
