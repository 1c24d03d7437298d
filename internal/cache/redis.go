package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisOptions configures the redis connection.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

// Redis is a Cache backed by a redis server.
type Redis struct {
	client *redis.Client
	log    logrus.FieldLogger
}

// NewRedis connects to redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, opts RedisOptions, log logrus.FieldLogger) (*Redis, error) {
	log = log.WithField("component", "cache")
	log.Infof("connecting to redis at %s", opts.Address)

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info("connected to redis")
	return &Redis{client: client, log: log}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		r.log.WithError(err).WithField("key", key).Error("redis get failed")
		return nil, err
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.WithError(err).WithField("key", key).Error("redis set failed")
		return err
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
