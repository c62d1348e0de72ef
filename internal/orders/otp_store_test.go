package orders

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	values map[string]string
	ttls   map[string]time.Duration
}

var _ redis.KeyValueStore = (*fakeKV)(nil)

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeKV) OTPKey(purpose, id string) string {
	return "sf:otp:" + purpose + ":" + id
}

func TestRedisOTPStoreRoundTrip(t *testing.T) {
	kv := &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
	store, err := NewRedisOTPStore(kv)
	require.NoError(t, err)

	ctx := context.Background()
	orderID := uuid.New()
	missing, err := store.Load(ctx, orderID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	record := OTPRecord{Hash: "$argon2id$x", ExpiresAt: baseNow.Add(10 * time.Minute), LastSentAt: baseNow}
	require.NoError(t, store.Save(ctx, orderID, record, 10*time.Minute))

	key := "sf:otp:cancel:" + orderID.String()
	assert.Equal(t, 10*time.Minute, kv.ttls[key])
	assert.Contains(t, kv.values[key], `"lastSentAt"`)

	loaded, err := store.Load(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record.Hash, loaded.Hash)
	assert.True(t, loaded.ExpiresAt.Equal(record.ExpiresAt))

	require.NoError(t, store.Delete(ctx, orderID))
	gone, err := store.Load(ctx, orderID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
