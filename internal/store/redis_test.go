package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	_ "github.com/weftpos/weftpos/testing"
)

type testDoc struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "weftpos_test")
}

func TestRedisGetSetRemove(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	snap, err := s.Get(ctx, "suppliers/s1")
	require.NoError(t, err)
	require.False(t, snap.Exists())

	require.NoError(t, s.Set(ctx, "suppliers/s1", testDoc{Name: "Karim Textiles", Total: 1200}))

	snap, err = s.Get(ctx, "suppliers/s1")
	require.NoError(t, err)
	require.True(t, snap.Exists())
	var doc testDoc
	require.NoError(t, snap.Val(&doc))
	require.Equal(t, "Karim Textiles", doc.Name)
	require.InDelta(t, 1200, doc.Total, 0.0001)

	require.NoError(t, s.Remove(ctx, "suppliers/s1"))
	snap, err = s.Get(ctx, "suppliers/s1")
	require.NoError(t, err)
	require.False(t, snap.Exists())
}

func TestRedisUpdateAppliesAllEntries(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cashbook/c1", testDoc{Name: "old", Total: 10}))
	require.NoError(t, s.Update(ctx, map[string]any{
		"cashbook/c1":     nil,
		"cashbook/c2":     testDoc{Name: "sale", Total: 500},
		"transactions/t1": testDoc{Name: "memo-9", Total: 500},
	}))

	snap, err := s.Get(ctx, "cashbook/c1")
	require.NoError(t, err)
	require.False(t, snap.Exists())

	for _, path := range []string{"cashbook/c2", "transactions/t1"} {
		snap, err := s.Get(ctx, path)
		require.NoError(t, err)
		require.True(t, snap.Exists(), path)
	}
}

func TestRedisUpdateRejectsUnmarshallableValue(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	err := s.Update(ctx, map[string]any{
		"cashbook/c1": testDoc{Name: "kept out", Total: 1},
		"cashbook/c2": make(chan int),
	})
	require.Error(t, err)

	// Nothing may have been applied.
	snap, err := s.Get(ctx, "cashbook/c1")
	require.NoError(t, err)
	require.False(t, snap.Exists())
}

func TestRedisList(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "fabrics/f1/batches/b1", testDoc{Name: "red"}))
	require.NoError(t, s.Set(ctx, "fabrics/f1/batches/b2", testDoc{Name: "blue"}))
	require.NoError(t, s.Set(ctx, "fabrics/f2/batches/b9", testDoc{Name: "other"}))

	docs, err := s.List(ctx, "fabrics/f1/batches/")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Contains(t, docs, "fabrics/f1/batches/b1")
	require.Contains(t, docs, "fabrics/f1/batches/b2")
}

func TestRedisPushIdentifiersAreUnique(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := s.Push(ctx, "transactions")
		require.NoError(t, err)
		require.NotEmpty(t, id)
		require.False(t, seen[id])
		seen[id] = true
	}
}
