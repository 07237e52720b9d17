package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
)

// StoredResponse is a completed response kept for replay under an idempotency key.
type StoredResponse struct {
	BodyHash    uint64 `json:"bodyHash"`
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (StoredResponse, bool, error)
	Set(ctx context.Context, key string, response StoredResponse, ttl time.Duration) error
}

// IdempotencyKey derives the store key for a request. The raw client key
// never reaches the store, so any header value is safe for memcached.
func IdempotencyKey(requester, key, method, path string) string {
	h := xxh3.HashString128(requester + "\x00" + key + "\x00" + method + "\x00" + path)
	return fmt.Sprintf("idem:%016x%016x", h.Hi, h.Lo)
}

func BodyHash(body []byte) uint64 {
	return xxh3.Hash(body)
}

type MemoryIdempotencyStore struct {
	cache *cache.Cache
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) (StoredResponse, bool, error) {
	value, ok := s.cache.Get(key)
	if !ok {
		return StoredResponse{}, false, nil
	}
	response, ok := value.(StoredResponse)
	return response, ok, nil
}

func (s *MemoryIdempotencyStore) Set(_ context.Context, key string, response StoredResponse, ttl time.Duration) error {
	s.cache.Set(key, response, ttl)
	return nil
}

type MemcacheIdempotencyStore struct {
	client *memcache.Client
}

func NewMemcacheIdempotencyStore(client *memcache.Client) *MemcacheIdempotencyStore {
	return &MemcacheIdempotencyStore{client: client}
}

func (s *MemcacheIdempotencyStore) Get(ctx context.Context, key string) (StoredResponse, bool, error) {
	_, span := tracer.Start(ctx, "Idempotency.Memcache.Get")
	defer span.End()

	item, err := s.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return StoredResponse{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return StoredResponse{}, false, errors.Wrap(err, "memcache get failed")
	}

	var response StoredResponse
	if err := json.Unmarshal(item.Value, &response); err != nil {
		span.RecordError(err)
		return StoredResponse{}, false, errors.Wrap(err, "corrupt stored response")
	}
	return response, true, nil
}

func (s *MemcacheIdempotencyStore) Set(ctx context.Context, key string, response StoredResponse, ttl time.Duration) error {
	_, span := tracer.Start(ctx, "Idempotency.Memcache.Set")
	defer span.End()

	value, err := json.Marshal(response)
	if err != nil {
		return err
	}

	err = s.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(ttl / time.Second),
	})
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "memcache set failed")
	}
	return nil
}
