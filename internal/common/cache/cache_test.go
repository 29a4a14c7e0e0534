package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// ========================================
// Memory
// ========================================

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var got payload
	hit, err := m.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	in := payload{Name: "a", Items: []string{"x"}}
	require.NoError(t, m.Set(ctx, "k", in, time.Minute))
	in.Items[0] = "mutated"

	hit, err = m.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"x"}, got.Items)

	require.NoError(t, m.Delete(ctx, "k"))
	hit, _ = m.Get(ctx, "k", &got)
	assert.False(t, hit)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", "v", time.Second))

	var got string
	hit, _ := m.Get(ctx, "k", &got)
	assert.True(t, hit)

	now = now.Add(2 * time.Second)
	hit, _ = m.Get(ctx, "k", &got)
	assert.False(t, hit)

	m.Purge()
	_, ok := m.entries.Load("k")
	assert.False(t, ok)
}

func TestGetOrCompute_ComputesOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var calls int32

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var v int
			_, err := GetOrCompute(ctx, m, "sum", time.Minute, &v, func(ctx context.Context) (interface{}, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")

	var v int
	_, err := GetOrCompute(ctx, m, "k", time.Minute, &v, func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	hit, err := GetOrCompute(ctx, m, "k", time.Minute, &v, func(ctx context.Context) (interface{}, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)

	hit, err = GetOrCompute(ctx, m, "k", time.Minute, &v, func(ctx context.Context) (interface{}, error) {
		return 8, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, v)
}

type brokenWrites struct {
	*Memory
}

func (brokenWrites) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("connection refused")
}

func TestGetOrCompute_WriteFailureKeepsValue(t *testing.T) {
	ctx := context.Background()
	c := brokenWrites{NewMemory()}

	var v payload
	hit, err := GetOrCompute(ctx, c, "k", time.Minute, &v, func(ctx context.Context) (interface{}, error) {
		return payload{Name: "fresh", Items: []string{"a"}}, nil
	})
	assert.False(t, hit)
	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "k", werr.Key)
	assert.Equal(t, "fresh", v.Name)
	assert.Equal(t, []string{"a"}, v.Items)
}

func TestGetOrCompute_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	var v int
	hit, err := GetOrCompute(context.Background(), NewRedis(client, "test:"), "k", time.Minute, &v, func(ctx context.Context) (interface{}, error) {
		return 9, nil
	})
	assert.False(t, hit)
	var werr *WriteError
	assert.ErrorAs(t, err, &werr)
	assert.Equal(t, 9, v)
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := NewKeyedMutex()
	unlock := k.Lock("a")
	assert.Len(t, k.locks, 1)
	unlock()
	assert.Empty(t, k.locks)
}

// ========================================
// Redis
// ========================================

func TestRedis_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	c := NewRedis(client, "agency:")

	require.NoError(t, c.Set(ctx, "brief:1", payload{Name: "b"}, time.Hour))
	assert.True(t, mr.Exists("agency:brief:1"))

	var got payload
	hit, err := c.Get(ctx, "brief:1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "b", got.Name)

	mr.FastForward(2 * time.Hour)
	hit, err = c.Get(ctx, "brief:1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedis_Mock(t *testing.T) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("p:k").RedisNil()

		var got payload
		hit, err := NewRedis(client, "p:").Get(ctx, "k", &got)
		assert.NoError(t, err)
		assert.False(t, hit)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("backend error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("p:k").SetErr(errors.New("connection refused"))

		var got payload
		hit, err := NewRedis(client, "p:").Get(ctx, "k", &got)
		assert.Error(t, err)
		assert.False(t, hit)
	})

	t.Run("set", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		data, _ := json.Marshal(payload{Name: "x"})
		mock.ExpectSet("p:k", data, time.Minute).SetVal("OK")

		err := NewRedis(client, "p:").Set(ctx, "k", payload{Name: "x"}, time.Minute)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
