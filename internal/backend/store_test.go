// ABOUTME: Tests for the SQLite catalog store
// ABOUTME: CRUD per kind, search filters, chat history and index replacement

package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/brewdesk/internal/catalog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "brewdesk.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CRUDEveryKind(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	recs := []catalog.Record{
		&catalog.Outlet{Name: "Bangsar", Category: "Kuala Lumpur", Address: "Jalan Telawi"},
		&catalog.Product{Name: "Tumbler", Category: "Drinkware", Price: catalog.Price(79), Stock: 4},
		&catalog.Food{Name: "Toast", Category: "Bakery"},
		&catalog.Drink{Name: "Latte", Category: "Coffee", Price: catalog.Price(12.5)},
	}
	for _, rec := range recs {
		t.Run(string(rec.Kind()), func(t *testing.T) {
			created, err := s.Create(ctx, rec)
			require.NoError(t, err)
			id, ok := created.Identifier()
			require.True(t, ok)

			got, err := s.Get(ctx, rec.Kind(), id)
			require.NoError(t, err)
			assert.Equal(t, rec.Values(), got.Values())

			vals := rec.Values()
			vals["name"] = "Renamed"
			changed, err := catalog.FromValues(rec.Kind(), nil, vals)
			require.NoError(t, err)
			_, err = s.Update(ctx, id, changed)
			require.NoError(t, err)

			got, err = s.Get(ctx, rec.Kind(), id)
			require.NoError(t, err)
			assert.Equal(t, "Renamed", got.Values()["name"])

			require.NoError(t, s.Delete(ctx, rec.Kind(), id))
			_, err = s.Get(ctx, rec.Kind(), id)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, rec.Kind(), id), ErrNotFound)
		})
	}
}

func TestStore_NullPriceRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.Create(ctx, &catalog.Food{Name: "Toast", Category: "Bakery"})
	require.NoError(t, err)
	id, _ := created.Identifier()

	got, err := s.Get(ctx, catalog.KindFood, id)
	require.NoError(t, err)
	assert.Nil(t, got.Values()["price"])
}

func TestStore_UpdateMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Update(context.Background(), 99, &catalog.Drink{Name: "x", Category: "y"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListPages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Create(ctx, &catalog.Drink{Name: name, Category: "Coffee"})
		require.NoError(t, err)
	}

	recs, total, err := s.List(ctx, catalog.KindDrink, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, recs, 1)
	assert.Equal(t, "c", recs[0].Values()["name"])

	recs, total, err = s.List(ctx, catalog.KindOutlet, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestStore_Search(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, rec := range []catalog.Record{
		&catalog.Product{Name: "All Day Cup", Category: "Mugs", Price: catalog.Price(39)},
		&catalog.Product{Name: "Frozee Cold Cup", Category: "Tumblers", Price: catalog.Price(55)},
		&catalog.Product{Name: "Corak Tumbler", Category: "Tumblers", Price: catalog.Price(79)},
		&catalog.Outlet{Name: "SS2", Category: "Selangor", Address: "Petaling Jaya"},
	} {
		_, err := s.Create(ctx, rec)
		require.NoError(t, err)
	}

	recs, err := s.Search(ctx, catalog.KindProduct, Query{Name: "cup"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = s.Search(ctx, catalog.KindProduct, Query{Category: "Tumblers", MaxPrice: catalog.Price(60)})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Frozee Cold Cup", recs[0].Values()["name"])

	recs, err = s.Search(ctx, catalog.KindProduct, Query{MinPrice: catalog.Price(40), Limit: 1})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	// Price bounds do not apply to outlets.
	recs, err = s.Search(ctx, catalog.KindOutlet, Query{Address: "petaling", MinPrice: catalog.Price(1000)})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestStore_ChatHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.AppendChat(ctx, "s1", Turn{Role: "user", Content: "hi"}, Turn{Role: "assistant", Content: "hello"}))
	require.NoError(t, s.AppendChat(ctx, "s2", Turn{Role: "user", Content: "other"}))

	turns, err := s.ChatHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}, turns)

	require.NoError(t, s.ClearChat(ctx, "s1"))
	turns, err = s.ChatHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)

	turns, err = s.ChatHistory(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestReindex_ReplacesDocuments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Create(ctx, &catalog.Outlet{Name: "Bangsar", Category: "Kuala Lumpur", Address: "Jalan Telawi"})
	require.NoError(t, err)
	_, err = s.Create(ctx, &catalog.Drink{Name: "Latte", Category: "Coffee", Price: catalog.Price(12.5)})
	require.NoError(t, err)

	n, err := Reindex(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	docs, err := s.IndexDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Outlet: Bangsar, Region: Kuala Lumpur, Address: Jalan Telawi", docs[0].Text)
	assert.Equal(t, "Drink: Latte, Category: Coffee, Price: RM 12.50", docs[1].Text)

	// A second run replaces rather than appends.
	n, err = Reindex(ctx, s)
	require.NoError(t, err)
	count, err := s.IndexCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, count)
}
