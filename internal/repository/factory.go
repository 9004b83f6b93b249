package repository

import (
	"github.com/navikt/roomboard/internal/config"
	"github.com/navikt/roomboard/internal/repository/memory"
	"github.com/navikt/roomboard/internal/repository/redis"
)

// NewRepository returns a Redis repository when enabled in cfg, otherwise an in-memory one
func NewRepository(cfg config.RedisConfig) (Repository, error) {
	if !cfg.Enabled {
		return memory.NewRepository(), nil
	}

	repo, err := redis.NewRepository(cfg)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
