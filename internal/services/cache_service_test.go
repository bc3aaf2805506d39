package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedisClient struct {
	mu     sync.Mutex
	values map[string]interface{}
	ttls   map[string]time.Duration
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{
		values: make(map[string]interface{}),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeRedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	if !ok {
		return errNotFound
	}
	if out, ok := dest.(*string); ok {
		*out = value.(string)
	}
	return nil
}

func (f *fakeRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.ttls[key] = expiration
	return nil
}

func (f *fakeRedisClient) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeRedisClient) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok, nil
}

func (f *fakeRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value
	f.ttls[key] = expiration
	return true, nil
}

func (f *fakeRedisClient) IncrementBy(ctx context.Context, key string, value int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, _ := f.values[key].(int64)
	current += value
	f.values[key] = current
	return current, nil
}

func (f *fakeRedisClient) Ping(ctx context.Context) error {
	return nil
}

func TestCacheServicePrefixesKeys(t *testing.T) {
	client := newFakeRedisClient()
	svc := NewCacheService(client, testLogger(t), "ringokai", time.Minute)

	require.NoError(t, svc.Set(context.Background(), "participant:abc", "payload", time.Hour))

	_, ok := client.values["ringokai:participant:abc"]
	assert.True(t, ok)

	var out string
	require.NoError(t, svc.Get(context.Background(), "participant:abc", &out))
	assert.Equal(t, "payload", out)

	exists, err := svc.Exists(context.Background(), "participant:abc")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, svc.Delete(context.Background(), "participant:abc"))
	exists, err = svc.Exists(context.Background(), "participant:abc")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCacheServiceDefaultTTL(t *testing.T) {
	client := newFakeRedisClient()
	svc := NewCacheService(client, testLogger(t), "ringokai", 15*time.Minute)

	require.NoError(t, svc.Set(context.Background(), "k", "v", 0))
	assert.Equal(t, 15*time.Minute, client.ttls["ringokai:k"])

	require.NoError(t, svc.Set(context.Background(), "k2", "v", time.Hour))
	assert.Equal(t, time.Hour, client.ttls["ringokai:k2"])
}

func TestCacheServiceSetNXAndIncrement(t *testing.T) {
	client := newFakeRedisClient()
	svc := NewCacheService(client, testLogger(t), "", time.Minute)

	set, err := svc.SetNX(context.Background(), "lock", "owner-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = svc.SetNX(context.Background(), "lock", "owner-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, set)

	n, err := svc.Increment(context.Background(), "counter", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = svc.Increment(context.Background(), "counter", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
