package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// janela fixa: INCR + PEXPIRE atômicos no primeiro hit da janela
var takeScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisStore compartilha a cota entre instâncias usando contador por janela fixa no Redis
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "ratelimit:"}
}

func (s *RedisStore) Take(ctx context.Context, key string, q Quota) (bool, error) {
	n, err := takeScript.Run(ctx, s.rdb, []string{s.prefix + key}, q.Window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= int64(q.Max), nil
}
