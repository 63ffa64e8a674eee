// Package diskmanager performs the physical block transfer between
// page buffers and the database file. It knows nothing about frames,
// eviction or latches; callers hand it a page id and a page-sized
// buffer and it reads or writes exactly one page-aligned block.
package diskmanager

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

// DiskManager is the collaborator interface consumed by the disk
// scheduler. Both methods operate on exactly one fixed-size block.
type DiskManager interface {
	ReadPage(pageID pagemanager.PageID, data []byte) error
	WritePage(pageID pagemanager.PageID, data []byte) error
	PageSize() int
	Close() error
}

const (
	dbMagic    uint32 = 0x4B41DB00 // "KA" + DB
	dbVersion  uint32 = 1
	headerSize        = 128
)

// fileHeader is the fixed binary header at offset 0 of the database
// file. All fields are fixed-size so binary.Read/Write stay consistent;
// explicit padding keeps the struct at exactly headerSize bytes.
type fileHeader struct {
	Magic      uint32
	Version    uint32
	PageSize   uint32
	InstanceID [16]byte
	_          [headerSize - (3*4 + 16)]byte
}

// FileDiskManager stores pages in a single file: the header block at
// offset 0, then page i at headerSize + i*pageSize. Reads of pages the
// file has never grown to return a zeroed buffer, which matches how
// the buffer pool allocates fresh logical pages.
type FileDiskManager struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	pageSize int
	instance uuid.UUID
	logger   *zap.Logger
}

// NewFileDiskManager opens the database file at filePath, creating and
// initializing it if it does not exist. An existing file's header is
// validated against the configured page size.
func NewFileDiskManager(filePath string, pageSize int, logger *zap.Logger) (*FileDiskManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dm := &FileDiskManager{
		filePath: filePath,
		pageSize: pageSize,
		logger:   logger,
	}

	_, statErr := os.Stat(filePath)
	switch {
	case os.IsNotExist(statErr):
		file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
		if err != nil {
			return nil, fmt.Errorf("%w: creating file %s: %v", ErrIO, filePath, err)
		}
		dm.file = file
		dm.instance = uuid.New()
		header := fileHeader{
			Magic:    dbMagic,
			Version:  dbVersion,
			PageSize: uint32(pageSize),
		}
		copy(header.InstanceID[:], dm.instance[:])
		if err := dm.writeHeader(&header); err != nil {
			_ = file.Close()
			_ = os.Remove(filePath)
			return nil, err
		}
		logger.Info("created database file",
			zap.String("path", filePath),
			zap.Int("page_size", pageSize),
			zap.String("instance_id", dm.instance.String()))
	case statErr == nil:
		file, err := os.OpenFile(filePath, os.O_RDWR, 0o666)
		if err != nil {
			return nil, fmt.Errorf("%w: opening file %s: %v", ErrIO, filePath, err)
		}
		dm.file = file
		var header fileHeader
		if err := dm.readHeader(&header); err != nil {
			_ = file.Close()
			return nil, err
		}
		if header.Magic != dbMagic {
			_ = file.Close()
			return nil, fmt.Errorf("%w: got 0x%x", ErrBadMagic, header.Magic)
		}
		if header.PageSize != uint32(pageSize) {
			_ = file.Close()
			return nil, fmt.Errorf("%w: file page size %d, configured %d",
				ErrHeaderMismatch, header.PageSize, pageSize)
		}
		dm.instance = uuid.UUID(header.InstanceID)
		logger.Info("opened database file",
			zap.String("path", filePath),
			zap.String("instance_id", dm.instance.String()))
	default:
		return nil, fmt.Errorf("%w: stating file %s: %v", ErrIO, filePath, statErr)
	}

	return dm, nil
}

// InstanceID returns the UUID assigned to this database file when it
// was first created.
func (dm *FileDiskManager) InstanceID() uuid.UUID {
	return dm.instance
}

func (dm *FileDiskManager) PageSize() int { return dm.pageSize }

func (dm *FileDiskManager) writeHeader(header *fileHeader) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("%w: serializing header: %v", ErrSerialization, err)
	}
	if _, err := dm.file.WriteAt(buf.Bytes(), 0); err != nil {
		return fmt.Errorf("%w: writing header: %v", ErrIO, err)
	}
	return dm.file.Sync()
}

func (dm *FileDiskManager) readHeader(header *fileHeader) error {
	data := make([]byte, headerSize)
	n, err := dm.file.ReadAt(data, 0)
	if err != nil {
		if err == io.EOF && n < headerSize {
			return fmt.Errorf("%w: file too small for header", ErrDeserialization)
		}
		return fmt.Errorf("%w: reading header: %v", ErrIO, err)
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, header); err != nil {
		return fmt.Errorf("%w: deserializing header: %v", ErrDeserialization, err)
	}
	return nil
}

// ReadPage reads one page from disk into data. A page the file has not
// grown to yet reads back as all zeroes.
func (dm *FileDiskManager) ReadPage(pageID pagemanager.PageID, data []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return ErrClosed
	}
	if pageID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageID, pageID)
	}
	if len(data) != dm.pageSize {
		return fmt.Errorf("%w: buffer %d, page %d", ErrBadPageSize, len(data), dm.pageSize)
	}
	offset := headerSize + int64(pageID)*int64(dm.pageSize)
	n, err := dm.file.ReadAt(data, offset)
	if err == io.EOF || (err == nil && n < dm.pageSize) {
		// Never-written page: zero-fill past what the file holds.
		for i := n; i < dm.pageSize; i++ {
			data[i] = 0
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading page %d at offset %d: %v", ErrIO, pageID, offset, err)
	}
	return nil
}

// WritePage writes one page of data at the page's file offset.
func (dm *FileDiskManager) WritePage(pageID pagemanager.PageID, data []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return ErrClosed
	}
	if pageID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageID, pageID)
	}
	if len(data) != dm.pageSize {
		return fmt.Errorf("%w: buffer %d, page %d", ErrBadPageSize, len(data), dm.pageSize)
	}
	offset := headerSize + int64(pageID)*int64(dm.pageSize)
	if _, err := dm.file.WriteAt(data, offset); err != nil {
		return fmt.Errorf("%w: writing page %d at offset %d: %v", ErrIO, pageID, offset, err)
	}
	// No Sync here: durability of individual pages is the buffer
	// pool's call via FlushPage/FlushAllPages and Close.
	return nil
}

// Sync flushes all buffered writes to stable storage.
func (dm *FileDiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return ErrClosed
	}
	return dm.file.Sync()
}

// Close syncs and closes the underlying file. Further calls fail with
// ErrClosed.
func (dm *FileDiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return nil
	}
	if err := dm.file.Sync(); err != nil {
		dm.logger.Error("sync on close failed", zap.Error(err))
	}
	err := dm.file.Close()
	dm.file = nil
	return err
}
