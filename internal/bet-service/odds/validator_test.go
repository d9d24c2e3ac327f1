package odds

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-wager-platform/internal/bet-service/repo"
	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
)

type fakeRedis struct {
	vals map[string]string
	err  error
}

func (f fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.vals[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func event() repo.Event {
	return repo.Event{
		ID:     "evt-1",
		Status: repo.EventScheduled,
		Odds: map[string]map[string]decimal.Decimal{
			"1x2": {"home": decimal.RequireFromString("2.00"), "away": decimal.RequireFromString("3.40")},
		},
	}
}

func TestCurrentOddPrefersLiveValue(t *testing.T) {
	v := NewValidator(fakeRedis{vals: map[string]string{"odds:evt-1:1x2:home": "2.10"}}, nil)
	got, err := v.CurrentOdd(context.Background(), event(), "1x2", "home")
	require.NoError(t, err)
	assert.Equal(t, "2.1", got.String())
}

func TestCurrentOddFallsBackToEvent(t *testing.T) {
	cases := map[string]Getter{
		"missing key":  fakeRedis{},
		"redis down":   fakeRedis{err: errors.New("dial tcp: refused")},
		"garbage":      fakeRedis{vals: map[string]string{"odds:evt-1:1x2:away": "abc"}},
		"non positive": fakeRedis{vals: map[string]string{"odds:evt-1:1x2:away": "0"}},
		"no client":    nil,
	}
	for name, rdb := range cases {
		t.Run(name, func(t *testing.T) {
			v := NewValidator(rdb, nil)
			got, err := v.CurrentOdd(context.Background(), event(), "1x2", "away")
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString("3.40")))
		})
	}
}

func TestCurrentOddRejectsUnknownSelection(t *testing.T) {
	v := NewValidator(fakeRedis{vals: map[string]string{"odds:evt-1:1x2:draw": "3.00"}}, nil)

	_, err := v.CurrentOdd(context.Background(), event(), "1x2", "draw")
	assert.True(t, errors.Is(err, apperr.ErrInvalidSelection))

	_, err = v.CurrentOdd(context.Background(), event(), "totals", "over")
	assert.Equal(t, apperr.KindInvalidSelection, apperr.KindOf(err))
}
