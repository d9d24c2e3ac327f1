package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/odds-service/repo"
	"github.com/radieske/sports-wager-platform/pkg/contracts/keys"
)

// MGetter é o subconjunto do cliente Redis usado aqui (*redis.Client satisfaz)
type MGetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// LiveOdds sobrepõe as odds ao vivo gravadas pelo odds-processor às odds do banco
// Chave ausente, valor inválido ou Redis fora do ar mantêm a odd gravada
type LiveOdds struct {
	Client  MGetter
	Log     *zap.Logger
	OnError func()
}

func NewLiveOdds(c MGetter, log *zap.Logger) *LiveOdds {
	if log == nil {
		log = zap.NewNop()
	}
	return &LiveOdds{Client: c, Log: log}
}

// Apply atualiza evs no lugar com uma única ida ao Redis
func (l *LiveOdds) Apply(ctx context.Context, evs []repo.Event) {
	if l == nil || l.Client == nil {
		return
	}
	var ks []string
	for _, e := range evs {
		for _, o := range e.Odds {
			ks = append(ks, keys.LiveOdds(e.ID, o.Market, o.Selection))
		}
	}
	if len(ks) == 0 {
		return
	}

	vals, err := l.Client.MGet(ctx, ks...).Result()
	if err != nil || len(vals) != len(ks) {
		l.Log.Warn("live odds lookup failed", zap.Int("keys", len(ks)), zap.Error(err))
		if l.OnError != nil {
			l.OnError()
		}
		return
	}

	i := 0
	for ei := range evs {
		for oi := range evs[ei].Odds {
			v := vals[i]
			i++
			s, ok := v.(string)
			if !ok {
				continue
			}
			price, err := decimal.NewFromString(s)
			if err != nil || !price.IsPositive() {
				l.Log.Warn("invalid live odds value", zap.String("key", ks[i-1]), zap.String("value", s))
				continue
			}
			evs[ei].Odds[oi].Price = price
			evs[ei].Odds[oi].Live = true
		}
	}
}
