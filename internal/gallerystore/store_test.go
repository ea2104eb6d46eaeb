package gallerystore

import (
	"fmt"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/manga-reader/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testPages(n int) []model.Page {
	pages := make([]model.Page, n)
	for i := range pages {
		pages[i] = model.Page{
			Index: i,
			URL:   fmt.Sprintf("https://cdn.test/%d.jpg", i),
			Name:  model.PageName(i, ".jpg"),
			Data:  []byte(fmt.Sprintf("page-%d", i)),
		}
	}
	return pages
}

func TestSaveLookup(t *testing.T) {
	s := newTestStore(t)
	pages := testPages(12)

	require.NoError(t, s.Save("g1", pages))

	got, ok, err := s.Lookup("g1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 12)
	for i, p := range got {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, pages[i].Name, p.Name)
		assert.Equal(t, pages[i].Data, p.Data)
	}
}

func TestLookup_Missing(t *testing.T) {
	s := newTestStore(t)
	got, ok, err := s.Lookup("nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSave_KeepsGaps(t *testing.T) {
	s := newTestStore(t)
	pages := testPages(3)
	pages[1].Missing = true
	pages[1].Data = nil

	require.NoError(t, s.Save("g1", pages))
	got, ok, err := s.Lookup("g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got[1].Missing)
	assert.Nil(t, got[1].Data)
	assert.Equal(t, pages[2].Data, got[2].Data)
}

func TestSave_DoesNotMutateInput(t *testing.T) {
	s := newTestStore(t)
	pages := testPages(2)
	require.NoError(t, s.Save("g1", pages))
	assert.NotNil(t, pages[0].Data)
}

func TestDeleteAndList(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("b", testPages(2)))
	require.NoError(t, s.Save("a", testPages(3)))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].GalleryID)
	assert.Equal(t, 3, list[0].Pages)
	assert.Equal(t, int64(len("page-0")*3), list[0].Bytes)
	assert.Equal(t, "b", list[1].GalleryID)

	require.NoError(t, s.Delete("a"))
	_, ok, err := s.Lookup("a")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Delete("a"), ErrNotFound)

	list, err = s.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDelete_LeavesGalleriesSharingAPrefix(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("a", testPages(2)))
	require.NoError(t, s.Save("a:1", testPages(3)))
	require.NoError(t, s.Save("a:", testPages(1)))

	require.NoError(t, s.Delete("a"))

	for id, n := range map[string]int{"a:1": 3, "a:": 1} {
		got, ok, err := s.Lookup(id)
		require.NoError(t, err, id)
		require.True(t, ok, id)
		assert.Len(t, got, n, id)
		assert.Equal(t, []byte("page-0"), got[0].Data, id)
	}
}

func TestSave_ReplacesOlderCopy(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("g1", testPages(5)))
	require.NoError(t, s.Save("g1", testPages(2)))

	got, ok, err := s.Lookup("g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, countPageKeys(t, s, "g1"))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(len("page-0")*2), list[0].Bytes)
}

func countPageKeys(t *testing.T, s *Store, galleryID string) int {
	t.Helper()
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = pagePrefix(galleryID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save("g1", testPages(2)))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Lookup("g1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, got, 2)
}

func TestClosed(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Close(), ErrClosed)
	assert.ErrorIs(t, s.Save("g", testPages(1)), ErrClosed)
	_, _, err = s.Lookup("g")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.List()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Delete("g"), ErrClosed)
}
