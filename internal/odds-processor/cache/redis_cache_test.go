package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-wager-platform/internal/bet-service/odds"
	"github.com/radieske/sports-wager-platform/internal/bet-service/repo"
	"github.com/radieske/sports-wager-platform/internal/shared/config"
	"github.com/radieske/sports-wager-platform/pkg/contracts/events"
)

func TestLiveOddsVisibleToBetValidation(t *testing.T) {
	tc, err := config.LoadTest()
	if err != nil || tc.RedisAddr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: tc.RedisAddr})
	defer rdb.Close()
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	eventID := "cache-test-" + time.Now().Format("150405.000000000")
	c := NewRedisCache(rdb, time.Minute)
	require.NoError(t, c.SetCurrent(ctx, events.OddsUpdate{
		EventID:    eventID,
		Market:     "1x2",
		Selections: map[string]decimal.Decimal{"home": decimal.RequireFromString("2.15")},
		Version:    1,
	}))

	ttl, err := rdb.TTL(ctx, "odds:"+eventID+":1x2:home").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	v := odds.NewValidator(rdb, nil)
	ev := repo.Event{ID: eventID, Odds: map[string]map[string]decimal.Decimal{"1x2": {"home": decimal.RequireFromString("2.00")}}}
	got, err := v.CurrentOdd(ctx, ev, "1x2", "home")
	require.NoError(t, err)
	assert.Equal(t, "2.15", got.String())
}
