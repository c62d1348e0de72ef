package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/google/uuid"
)

const otpPurposeCancel = "cancel"

// RedisOTPStore keeps cancellation codes in redis with a TTL.
type RedisOTPStore struct {
	store redis.KeyValueStore
}

// NewRedisOTPStore wraps store.
func NewRedisOTPStore(store redis.KeyValueStore) (*RedisOTPStore, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &RedisOTPStore{store: store}, nil
}

func (s *RedisOTPStore) key(orderID uuid.UUID) string {
	return s.store.OTPKey(otpPurposeCancel, orderID.String())
}

func (s *RedisOTPStore) Save(ctx context.Context, orderID uuid.UUID, record OTPRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode otp record: %w", err)
	}
	return s.store.Set(ctx, s.key(orderID), payload, ttl)
}

func (s *RedisOTPStore) Load(ctx context.Context, orderID uuid.UUID) (*OTPRecord, error) {
	raw, err := s.store.Get(ctx, s.key(orderID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	var record OTPRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode otp record: %w", err)
	}
	return &record, nil
}

func (s *RedisOTPStore) Delete(ctx context.Context, orderID uuid.UUID) error {
	return s.store.Del(ctx, s.key(orderID))
}
