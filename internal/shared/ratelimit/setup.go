package ratelimit

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/shared/config"
)

// SweepSchedule é a agenda da limpeza de buckets ociosos do store em memória
const SweepSchedule = "@every 10m"

// QuotasFrom converte as cotas lidas do ambiente
func QuotasFrom(in map[string]config.RateQuota) map[Op]Quota {
	out := make(map[Op]Quota, len(in))
	for op, q := range in {
		out[Op(op)] = Quota{Max: q.Max, Window: q.Window}
	}
	return out
}

// Setup monta o limiter conforme RATE_LIMIT_BACKEND
// Com backend "memory" registra no cron a limpeza periódica dos buckets
func Setup(cfg config.Config, rdb *redis.Client, c *cron.Cron, log *zap.Logger) (*Limiter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	quotas := QuotasFrom(cfg.RateLimits)

	switch cfg.RateLimitBackend {
	case "redis":
		if rdb == nil {
			return nil, errors.New("rate limit backend redis requires a redis client")
		}
		return New(NewRedisStore(rdb), quotas, log), nil
	case "memory", "":
		store := NewMemoryStore(nil)
		if c != nil {
			if _, err := c.AddFunc(SweepSchedule, func() {
				if n := store.Sweep(); n > 0 {
					log.Debug("rate limit buckets swept", zap.Int("removed", n), zap.Int("active", store.Len()))
				}
			}); err != nil {
				return nil, fmt.Errorf("schedule sweep: %w", err)
			}
		}
		return New(store, quotas, log), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimitBackend)
	}
}
