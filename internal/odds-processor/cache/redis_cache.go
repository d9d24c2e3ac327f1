package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sports-wager-platform/pkg/contracts/events"
	"github.com/radieske/sports-wager-platform/pkg/contracts/keys"
)

// RedisCache encapsula operações de cache de odds no Redis
// Client: cliente Redis
// TTL: tempo de expiração dos registros (odd ao vivo expira se o fornecedor parar)
type RedisCache struct {
	Client redis.Cmdable
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// SetCurrent grava a odd ao vivo de cada seleção numa chave própria, lida pelo bet-service
func (r *RedisCache) SetCurrent(ctx context.Context, e events.OddsUpdate) error {
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for sel, odd := range e.Selections {
			pipe.Set(ctx, keys.LiveOdds(e.EventID, e.Market, sel), odd.String(), r.TTL)
		}
		return nil
	})
	return err
}
