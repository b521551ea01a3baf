package client

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"beatstore/internal/config"
)

func InitRedisClient(cfg *config.Redis) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}

	return rdb
}
