// internal/edgar/cursor.go
package edgar

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const cursorKeyPrefix = "edgar:cursor:"

// CursorStore persists the per-issuer cache validation token returned by the
// structured endpoint. A missing token is the empty string, never an error.
type CursorStore interface {
	Get(ctx context.Context, cik string) (string, error)
	Set(ctx context.Context, cik, token string) error
}

// RedisCursorStore keeps cursors in Redis so they survive restarts and are
// shared if more than one scanner instance runs. Writes are last-write-wins;
// a stale cursor only costs one full re-fetch.
type RedisCursorStore struct {
	client *redis.Client
}

func NewRedisCursorStore(client *redis.Client) *RedisCursorStore {
	return &RedisCursorStore{client: client}
}

func (s *RedisCursorStore) Get(ctx context.Context, cik string) (string, error) {
	val, err := s.client.Get(ctx, cursorKeyPrefix+cik).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cursor get %s: %w", cik, err)
	}
	return val, nil
}

func (s *RedisCursorStore) Set(ctx context.Context, cik, token string) error {
	if err := s.client.Set(ctx, cursorKeyPrefix+cik, token, 0).Err(); err != nil {
		return fmt.Errorf("cursor set %s: %w", cik, err)
	}
	return nil
}

// MemoryCursorStore is an in-process CursorStore used in tests and when Redis
// is not configured. Cursors reset on restart, which degrades to a full
// re-fetch per issuer, never to missed filings.
type MemoryCursorStore struct {
	mu      sync.RWMutex
	cursors map[string]string
}

func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: make(map[string]string)}
}

func (s *MemoryCursorStore) Get(_ context.Context, cik string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[cik], nil
}

func (s *MemoryCursorStore) Set(_ context.Context, cik, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[cik] = token
	return nil
}
