package memkv_test

import (
	"context"
	"testing"
	"time"

	"github.com/Astemirdum/library-kv-service/pkg/kv"
	"github.com/Astemirdum/library-kv-service/pkg/kv/memkv"
	"github.com/stretchr/testify/require"
)

func TestStore_CRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memkv.New()

	require.NoError(t, s.Put(ctx, "books", kv.Item{"id": "b1", "title": "T"}))

	got, err := s.Get(ctx, "books", "b1")
	require.NoError(t, err)
	require.Equal(t, "T", got["title"])

	got["title"] = "mutated"
	again, err := s.Get(ctx, "books", "b1")
	require.NoError(t, err)
	require.Equal(t, "T", again["title"], "returned items are copies")

	updated, err := s.Update(ctx, "books", "b1", kv.NewUpdate(time.Now()).Set("title", "U"))
	require.NoError(t, err)
	require.Equal(t, "U", updated["title"])
	require.Contains(t, updated, kv.UpdatedAtAttr)

	require.NoError(t, s.Delete(ctx, "books", "b1"))
	_, err = s.Get(ctx, "books", "b1")
	require.ErrorIs(t, err, kv.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, "books", "b1"), kv.ErrNotFound)

	_, err = s.Update(ctx, "books", "missing", kv.NewUpdate(time.Now()))
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStore_Scan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memkv.New()

	items, err := s.Scan(ctx, "loans")
	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)

	require.NoError(t, s.Put(ctx, "loans", kv.Item{"id": "l1", "userId": "u1"}))
	require.NoError(t, s.Put(ctx, "loans", kv.Item{"id": "l2", "userId": "u2"}))
	require.NoError(t, s.Put(ctx, "loans", kv.Item{"id": "l3", "userId": "u1"}))

	items, err = s.Scan(ctx, "loans", kv.Eq("userId", "u1"))
	require.NoError(t, err)
	require.Len(t, items, 2)

	items, err = s.Scan(ctx, "loans")
	require.NoError(t, err)
	require.Len(t, items, 3)
}

func TestStore_Locks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memkv.New()
	lock := kv.Lock{Table: "locks", ID: "book-1", Owner: "l1"}

	require.NoError(t, s.Put(ctx, "loans", kv.Item{"id": "l1"}, kv.Acquire(lock)))

	err := s.Put(ctx, "loans", kv.Item{"id": "l2"}, kv.Acquire(kv.Lock{Table: "locks", ID: "book-1", Owner: "l2"}))
	require.ErrorIs(t, err, kv.ErrConditionFailed)
	_, err = s.Get(ctx, "loans", "l2")
	require.ErrorIs(t, err, kv.ErrNotFound, "failed write must not persist the item")

	moved := kv.Lock{Table: "locks", ID: "book-2", Owner: "l1"}
	_, err = s.Update(ctx, "loans", "l1", kv.NewUpdate(time.Now()).Set("bookId", "book-2"), kv.Acquire(moved), kv.Release(lock))
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "loans", kv.Item{"id": "l3"}, kv.Acquire(kv.Lock{Table: "locks", ID: "book-1", Owner: "l3"})))

	require.NoError(t, s.Delete(ctx, "loans", "l1", kv.Release(moved)))
	_, err = s.Get(ctx, "locks", "book-2")
	require.ErrorIs(t, err, kv.ErrNotFound)
}
