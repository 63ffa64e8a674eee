package diskmanager

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

func setupFileDM(t *testing.T, pageSize int) (*FileDiskManager, string) {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "kage.db")
	dm, err := NewFileDiskManager(path, pageSize, logger)
	require.NoError(t, err)
	return dm, path
}

func TestFileDiskManager_ReadWriteRoundTrip(t *testing.T) {
	dm, _ := setupFileDM(t, pagemanager.DefaultPageSize)
	defer dm.Close()

	out := make([]byte, pagemanager.DefaultPageSize)
	copy(out, []byte("page five"))
	require.NoError(t, dm.WritePage(5, out))

	in := make([]byte, pagemanager.DefaultPageSize)
	require.NoError(t, dm.ReadPage(5, in))
	require.Equal(t, out, in)
}

func TestFileDiskManager_UnwrittenPageReadsZero(t *testing.T) {
	dm, _ := setupFileDM(t, pagemanager.DefaultPageSize)
	defer dm.Close()

	in := make([]byte, pagemanager.DefaultPageSize)
	in[0] = 0xFF
	require.NoError(t, dm.ReadPage(42, in))
	require.Equal(t, make([]byte, pagemanager.DefaultPageSize), in)
}

func TestFileDiskManager_ReopenKeepsDataAndIdentity(t *testing.T) {
	dm, path := setupFileDM(t, pagemanager.DefaultPageSize)
	instance := dm.InstanceID()

	out := make([]byte, pagemanager.DefaultPageSize)
	copy(out, []byte("survives reopen"))
	require.NoError(t, dm.WritePage(0, out))
	require.NoError(t, dm.Close())

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	dm2, err := NewFileDiskManager(path, pagemanager.DefaultPageSize, logger)
	require.NoError(t, err)
	defer dm2.Close()

	require.Equal(t, instance, dm2.InstanceID())
	in := make([]byte, pagemanager.DefaultPageSize)
	require.NoError(t, dm2.ReadPage(0, in))
	require.Equal(t, out, in)
}

func TestFileDiskManager_PageSizeMismatch(t *testing.T) {
	dm, path := setupFileDM(t, pagemanager.DefaultPageSize)
	require.NoError(t, dm.Close())

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	_, err = NewFileDiskManager(path, 8192, logger)
	require.ErrorIs(t, err, ErrHeaderMismatch)
}

func TestFileDiskManager_ArgumentValidation(t *testing.T) {
	dm, _ := setupFileDM(t, pagemanager.DefaultPageSize)
	defer dm.Close()

	buf := make([]byte, pagemanager.DefaultPageSize)
	require.ErrorIs(t, dm.ReadPage(-1, buf), ErrInvalidPageID)
	require.ErrorIs(t, dm.WritePage(-1, buf), ErrInvalidPageID)
	require.ErrorIs(t, dm.ReadPage(0, buf[:100]), ErrBadPageSize)
	require.ErrorIs(t, dm.WritePage(0, buf[:100]), ErrBadPageSize)
}

func TestFileDiskManager_UseAfterClose(t *testing.T) {
	dm, _ := setupFileDM(t, pagemanager.DefaultPageSize)
	require.NoError(t, dm.Close())
	require.NoError(t, dm.Close()) // idempotent

	buf := make([]byte, pagemanager.DefaultPageSize)
	require.ErrorIs(t, dm.ReadPage(0, buf), ErrClosed)
	require.ErrorIs(t, dm.WritePage(0, buf), ErrClosed)
	require.ErrorIs(t, dm.Sync(), ErrClosed)
}

func TestMemDiskManager_Counters(t *testing.T) {
	dm := NewMemDiskManager(512)

	buf := make([]byte, 512)
	copy(buf, []byte("mem"))
	require.NoError(t, dm.WritePage(3, buf))
	require.Equal(t, 1, dm.WriteCount())

	in := make([]byte, 512)
	require.NoError(t, dm.ReadPage(3, in))
	require.Equal(t, 1, dm.ReadCount())
	require.Equal(t, buf, in)
	require.Equal(t, []byte("mem"), dm.PageContent(3)[:3])
	require.Nil(t, dm.PageContent(4))
}
