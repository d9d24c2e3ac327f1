package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-wager-platform/internal/bet-service/repo"
	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
)

// Reader é a visão dos limites e do histórico de apostas dentro da transação corrente
type Reader interface {
	GetSpendLimits(ctx context.Context, userID string) (repo.SpendLimits, error)
	SumStakesSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error)
}

// Janelas móveis de gasto
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
)

// Evaluator aprova ou nega uma stake segundo os limites de jogo responsável
type Evaluator struct {
	now func() time.Time
}

func NewEvaluator(now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{now: now}
}

// Check aplica, nesta ordem: autoexclusão, stake máxima, e os tetos diário/semanal/mensal
// A primeira falha vence. Sem registro de limites = aprovado.
func (e *Evaluator) Check(ctx context.Context, r Reader, userID string, stake decimal.Decimal) error {
	lim, err := r.GetSpendLimits(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.KindStoreFailure, "load spend limits", err)
	}

	now := e.now()
	if lim.SelfExclusionUntil != nil && lim.SelfExclusionUntil.After(now) {
		return apperr.New(apperr.KindAccountLocked,
			fmt.Sprintf("self-exclusion active until %s", lim.SelfExclusionUntil.UTC().Format(time.RFC3339)))
	}

	if lim.MaxSingleStake != nil && stake.GreaterThan(*lim.MaxSingleStake) {
		return apperr.New(apperr.KindLimitExceeded,
			fmt.Sprintf("stake exceeds single bet limit of %s", lim.MaxSingleStake.StringFixed(2)))
	}

	windows := []struct {
		name string
		span time.Duration
		cap  *decimal.Decimal
	}{
		{"daily", Day, lim.DailyCap},
		{"weekly", Week, lim.WeeklyCap},
		{"monthly", Month, lim.MonthlyCap},
	}
	for _, w := range windows {
		if w.cap == nil {
			continue
		}
		spent, err := r.SumStakesSince(ctx, userID, now.Add(-w.span))
		if err != nil {
			return apperr.Wrap(apperr.KindStoreFailure, "sum "+w.name+" stakes", err)
		}
		if spent.Add(stake).GreaterThan(*w.cap) {
			return apperr.New(apperr.KindLimitExceeded,
				fmt.Sprintf("%s limit of %s exceeded", w.name, w.cap.StringFixed(2)))
		}
	}
	return nil
}
