package runlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a Redis advisory lock keyed by sender address. It keeps two cycler
// instances from racing the same account's nonce.
type Lock struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

var ErrHeld = errors.New("account lock already held")

// Only the owner may delete the key, even if the TTL raced.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type Config struct {
	Addr    string
	Address string
	TTL     time.Duration
}

func New(cfg Config) (*Lock, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis addr is required")
	}
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("account address is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	hostname, _ := os.Hostname()
	return &Lock{
		client: client,
		key:    "wethcycle:lock:" + strings.ToLower(cfg.Address),
		owner:  fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		ttl:    cfg.TTL,
	}, nil
}

func (l *Lock) Acquire(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		holder, _ := l.client.Get(ctx, l.key).Result()
		return fmt.Errorf("%w (holder %s)", ErrHeld, holder)
	}
	return nil
}

func (l *Lock) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (l *Lock) Close() error {
	return l.client.Close()
}
