package redis

import (
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	Db       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	UseTLS   bool   `yaml:"tls" env:"REDIS_TLS" env-default:"false"`
}

func New(cfg Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.Db,
	}
	if cfg.UseTLS {
		opts.TLSConfig = tlsConfig(cfg.Host)
	}
	return redis.NewClient(opts)
}
