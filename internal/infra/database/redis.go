package database

import (
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/ilp3/internal/config"
)

// NewRedis returns nil when no address is configured.
func NewRedis(conf config.Server) *redis.Client {
	if conf.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
}
