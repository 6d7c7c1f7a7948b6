package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"plotbot/config"
	"plotbot/pkg/logger"
	"plotbot/storage"
)

const (
	seenPrefix = "plotbot:seen:"
	lockPrefix = "plotbot:lock:"

	retryEvery = 50 * time.Millisecond
)

var ErrLockTimeout = errors.New("redis: lock wait timed out")

// Deletes the lock only if it still holds our token.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Guard struct {
	client *goredis.Client
	log    logger.ILogger
}

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (storage.IGuard, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect Redis", logger.Error(err))
		_ = client.Close()
		return nil, err
	}

	log.Info("Redis connected", logger.String("host", cfg.RedisHost))
	return NewWithClient(client, log), nil
}

func NewWithClient(client *goredis.Client, log logger.ILogger) *Guard {
	return &Guard{client: client, log: log}
}

func (g *Guard) FirstSeen(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if token == "" {
		return true, nil
	}
	ok, err := g.client.SetNX(ctx, seenPrefix+token, 1, ttl).Result()
	if err != nil {
		g.log.Error("redis setnx failed", logger.String("token", token), logger.Error(err))
		return true, err
	}
	return ok, nil
}

// Lock waits until the key is free or ttl elapses. The lock itself expires
// after ttl so a crashed holder cannot block the identity forever.
func (g *Guard) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	redisKey := lockPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(ttl)

	for {
		ok, err := g.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				if err := unlockScript.Run(context.Background(), g.client, []string{redisKey}, token).Err(); err != nil {
					g.log.Warning("redis unlock failed", logger.String("key", key), logger.Error(err))
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryEvery):
		}
	}
}

func (g *Guard) Close() error {
	return g.client.Close()
}
