package odds

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/bet-service/repo"
	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
	"github.com/radieske/sports-wager-platform/pkg/contracts/keys"
)

// Getter é o subconjunto do cliente Redis usado aqui (*redis.Client satisfaz)
type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Validator resolve a odd corrente de uma seleção.
// A odd ao vivo no Redis tem precedência; sem ela vale a odd gravada no evento.
type Validator struct {
	Rdb Getter
	Log *zap.Logger
}

func NewValidator(r Getter, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{Rdb: r, Log: log}
}

// CurrentOdd retorna a odd atual; INVALID_SELECTION se o evento não oferece o par
// Espera chave "odds:{eventID}:{market}:{selection}" => valor string com odd, ex: "1.85"
func (v *Validator) CurrentOdd(ctx context.Context, ev repo.Event, market, selection string) (decimal.Decimal, error) {
	base, ok := ev.OddsFor(market, selection)
	if !ok {
		return decimal.Zero, apperr.New(apperr.KindInvalidSelection,
			"selection "+selection+" not offered in market "+market)
	}
	if v == nil || v.Rdb == nil {
		return base, nil
	}

	key := keys.LiveOdds(ev.ID, market, selection)
	val, err := v.Rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return base, nil
	}
	if err != nil {
		// cache indisponível não bloqueia aposta; odd do evento ainda é autoritativa
		v.Log.Warn("live odds lookup failed", zap.String("key", key), zap.Error(err))
		return base, nil
	}

	live, err := decimal.NewFromString(val)
	if err != nil || !live.IsPositive() {
		v.Log.Warn("invalid live odds value", zap.String("key", key), zap.String("value", val))
		return base, nil
	}
	return live, nil
}
