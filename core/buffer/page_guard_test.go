package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"

	pagemanager "github.com/kagedb/kagedb/core/storage/page_manager"
)

func TestPageGuard_DropUnpins(t *testing.T) {
	bpm, _ := setupPool(t, 2, 2)

	guard, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id := guard.PageID()
	guard.Drop()

	// The pin is gone: the page can be deleted.
	require.True(t, bpm.DeletePage(id))
}

func TestPageGuard_DoubleDropSafe(t *testing.T) {
	bpm, _ := setupPool(t, 2, 2)

	guard, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id := guard.PageID()
	guard.Drop()
	guard.Drop()
	require.Equal(t, pagemanager.InvalidPageID, guard.PageID())

	// A second drop must not push the pin count negative; a fresh
	// fetch+unpin cycle still balances.
	page, err := bpm.FetchPage(id)
	require.NoError(t, err)
	require.Equal(t, 1, page.PinCount())
	require.True(t, bpm.UnpinPage(id, false))
}

func TestPageGuard_WriteDropMarksDirty(t *testing.T) {
	const poolSize = 2
	bpm, disk := setupPool(t, poolSize, 2)

	guard, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id := guard.PageID()
	wg := guard.UpgradeWrite()
	copy(wg.DataMut(), []byte("guarded"))
	wg.Drop()

	// Evict the page; the write guard's dirty mark forces writeback.
	for i := 0; i < poolSize; i++ {
		p, err := bpm.NewPage()
		require.NoError(t, err)
		require.True(t, bpm.UnpinPage(p.ID(), false))
	}
	require.Equal(t, []byte("guarded"), disk.PageContent(id)[:7])
}

func TestPageGuard_UpgradeConsumesSource(t *testing.T) {
	bpm, _ := setupPool(t, 3, 2)

	basic, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id := basic.PageID()

	rg := basic.UpgradeRead()
	require.Equal(t, pagemanager.InvalidPageID, basic.PageID())
	require.Equal(t, id, rg.PageID())
	basic.Drop() // consumed source: no-op
	rg.Drop()

	// Exactly one pin was released.
	require.True(t, bpm.DeletePage(id))
}

func TestPageGuard_ReadAndWriteGuards(t *testing.T) {
	bpm, _ := setupPool(t, 3, 2)

	guard, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id := guard.PageID()
	wg := guard.UpgradeWrite()
	copy(wg.DataMut(), []byte("content"))
	wg.Drop()

	rg, err := bpm.FetchPageRead(id)
	require.NoError(t, err)
	require.Equal(t, []byte("content"), rg.Data()[:7])

	// Concurrent readers share the latch.
	rg2, err := bpm.FetchPageRead(id)
	require.NoError(t, err)
	require.Equal(t, []byte("content"), rg2.Data()[:7])
	rg.Drop()
	rg2.Drop()

	wg2, err := bpm.FetchPageWrite(id)
	require.NoError(t, err)
	copy(wg2.DataMut(), []byte("updated"))
	wg2.Drop()

	rg3, err := bpm.FetchPageRead(id)
	require.NoError(t, err)
	require.Equal(t, []byte("updated"), rg3.Data()[:7])
	rg3.Drop()
}

func TestPageGuard_FetchInvalid(t *testing.T) {
	bpm, _ := setupPool(t, 2, 2)

	_, err := bpm.FetchPageBasic(pagemanager.InvalidPageID)
	require.ErrorIs(t, err, ErrPageNotFound)
	_, err = bpm.FetchPageRead(pagemanager.InvalidPageID)
	require.ErrorIs(t, err, ErrPageNotFound)
	_, err = bpm.FetchPageWrite(pagemanager.InvalidPageID)
	require.ErrorIs(t, err, ErrPageNotFound)
}
