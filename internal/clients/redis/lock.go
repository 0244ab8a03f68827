package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/lectern-backend/internal/modules/quizgen"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript resets the expiry only while the key still holds our token.
var refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker is a quizgen.Locker backed by SET NX PX, shared across instances.
type Locker struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

var _ quizgen.Locker = (*Locker)(nil)

func NewLocker(log *logger.Logger, addr, prefix string) (*Locker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Locker{
		log:    log.With("service", "RedisLocker"),
		rdb:    rdb,
		prefix: strings.TrimSpace(prefix),
	}, nil
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (quizgen.Lease, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}
	full := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", full, err)
	}
	if !ok {
		return nil, quizgen.ErrLocked
	}
	return &lease{l: l, key: full, token: token, ttl: ttl}, nil
}

type lease struct {
	l     *Locker
	key   string
	token string
	ttl   time.Duration
	once  sync.Once
}

func (ls *lease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, ls.l.rdb, []string{ls.key}, ls.token, ls.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis refresh %s: %w", ls.key, err)
	}
	if n == 0 {
		return quizgen.ErrLockLost
	}
	return nil
}

func (ls *lease) Release() {
	ls.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, ls.l.rdb, []string{ls.key}, ls.token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			ls.l.log.Warn("redis lock release failed", "key", ls.key, "error", err.Error())
		}
	})
}

func (l *Locker) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}
