// Package guard prevents concurrent submissions of the same content by the
// same account.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrHeld = errors.New("guard: key is held by another request")

// ReleaseFunc gives the key back. It is safe to call more than once.
type ReleaseFunc func()

// RedisGuard holds keys with SET NX PX so the guard spans every server
// instance sharing the Redis deployment.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// releaseScript deletes the key only if it still carries our token, so an
// expired-and-retaken key is never released by the old owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedis(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl, prefix: "notary:inflight:"}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.prefix+key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire guard: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, g.client, []string{g.prefix + key}, token).Err()
		})
	}, nil
}

// MemoryGuard is the single-process fallback.
type MemoryGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	held map[string]entry
	now  func() time.Time
}

type entry struct {
	token   string
	expires time.Time
}

func NewMemory(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{ttl: ttl, held: make(map[string]entry), now: time.Now}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (ReleaseFunc, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if e, ok := g.held[key]; ok && now.Before(e.expires) {
		return nil, ErrHeld
	}
	token := uuid.NewString()
	g.held[key] = entry{token: token, expires: now.Add(g.ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if e, ok := g.held[key]; ok && e.token == token {
				delete(g.held, key)
			}
		})
	}, nil
}
