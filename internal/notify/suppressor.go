package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Suppressor tracks per-chemical alert cooldowns. Suppressed only reads;
// Mark starts a cooldown and is called once an alert has been delivered.
type Suppressor interface {
	Suppressed(ctx context.Context, chemicalID uint) (bool, error)
	Mark(ctx context.Context, chemicalID uint, ttl time.Duration) error
}

// MemorySuppressor keeps cooldowns in process memory.
type MemorySuppressor struct {
	mu    sync.Mutex
	until map[uint]time.Time
	now   func() time.Time
}

func NewMemorySuppressor() *MemorySuppressor {
	return &MemorySuppressor{until: make(map[uint]time.Time), now: time.Now}
}

func (s *MemorySuppressor) Suppressed(_ context.Context, chemicalID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.until[chemicalID]
	return ok && s.now().Before(t), nil
}

func (s *MemorySuppressor) Mark(_ context.Context, chemicalID uint, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	// drop expired entries
	for id, t := range s.until {
		if !now.Before(t) {
			delete(s.until, id)
		}
	}
	s.until[chemicalID] = now.Add(ttl)
	return nil
}

// RedisSuppressor shares cooldowns between instances as keys with a TTL.
type RedisSuppressor struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisSuppressor(client redis.UniversalClient) *RedisSuppressor {
	return &RedisSuppressor{client: client, prefix: "chemtrack:lowstock:"}
}

// NewRedisSuppressorFromURL parses a redis:// URL and pings the server.
func NewRedisSuppressorFromURL(ctx context.Context, url string) (*RedisSuppressor, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisSuppressor(client), nil
}

func (s *RedisSuppressor) key(chemicalID uint) string {
	return s.prefix + strconv.FormatUint(uint64(chemicalID), 10)
}

func (s *RedisSuppressor) Suppressed(ctx context.Context, chemicalID uint) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(chemicalID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (s *RedisSuppressor) Mark(ctx context.Context, chemicalID uint, ttl time.Duration) error {
	err := s.client.Set(ctx, s.key(chemicalID), time.Now().UTC().Format(time.RFC3339), ttl).Err()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisSuppressor) Close() error {
	return s.client.Close()
}
