package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"truthlens-api/config"
	"truthlens-api/logging"

	"github.com/redis/go-redis/v9"
)

var ErrKeyNotFound = errors.New("key not found")

const scanBatch = 200

// KVStore is the JSON key-value layer over Redis used for predictions,
// rate limiting, the news feed cache and pub/sub.
type KVStore struct {
	client *redis.Client
}

func NewKVStore(cfg config.RedisConfig, logger logging.Logger) (*KVStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Retry up to 10 times so the API can start alongside Redis in compose.
	var lastErr error
	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return &KVStore{client: client}, nil
		}
		logger.WithError(lastErr).Warnf("Redis ping attempt %d/10 failed", i+1)
		time.Sleep(2 * time.Second)
	}

	_ = client.Close()
	return nil, fmt.Errorf("redis ping failed after 10 attempts: %w", lastErr)
}

func NewKVStoreFromClient(client *redis.Client) *KVStore {
	return &KVStore{client: client}
}

func (s *KVStore) Client() *redis.Client {
	return s.client
}

func (s *KVStore) Available() bool {
	return s != nil && s.client != nil
}

func (s *KVStore) Ping(ctx context.Context) error {
	if !s.Available() {
		return errors.New("redis not configured")
	}
	return s.client.Ping(ctx).Err()
}

// Get decodes the JSON value at key into dest, or returns ErrKeyNotFound.
func (s *KVStore) Get(ctx context.Context, key string, dest interface{}) error {
	if !s.Available() {
		return ErrKeyNotFound
	}
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Set stores value as JSON. A zero ttl keeps the key forever.
func (s *KVStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if !s.Available() {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

// GetByPrefix returns the raw values of every key starting with prefix.
// Keys are discovered with SCAN so large keyspaces do not block Redis.
func (s *KVStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	if !s.Available() {
		return nil, nil
	}

	var (
		values [][]byte
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s*: %w", prefix, err)
		}
		if len(keys) > 0 {
			raw, err := s.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("redis mget: %w", err)
			}
			for _, v := range raw {
				// Keys can vanish between SCAN and MGET.
				str, ok := v.(string)
				if !ok {
					continue
				}
				values = append(values, []byte(str))
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return values, nil
}

// Incr bumps a counter and, in the same transaction, starts its expiry
// window unless one is already running.
func (s *KVStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if !s.Available() {
		return 0, nil
	}
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		if window > 0 {
			pipe.ExpireNX(ctx, key, window)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Counter reads an integer counter, returning 0 when it does not exist.
func (s *KVStore) Counter(ctx context.Context, key string) (int64, error) {
	if !s.Available() {
		return 0, nil
	}
	n, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return n, nil
}

func (s *KVStore) Publish(ctx context.Context, channel string, message interface{}) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

func (s *KVStore) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	if !s.Available() {
		return nil
	}
	return s.client.Subscribe(ctx, channel)
}

func (s *KVStore) Close() error {
	if !s.Available() {
		return nil
	}
	return s.client.Close()
}
