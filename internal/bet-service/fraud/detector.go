// Package fraud avalia heurísticas de fraude depois que a aposta já foi gravada.
//
// O resultado é apenas informativo: alertas vão para log e para o tópico
// fraud_alerts, nunca revertem a aposta, e falhas aqui não chegam ao apostador.
package fraud

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/shared/config"
	"github.com/radieske/sports-wager-platform/pkg/contracts/events"
)

// Reader lê o histórico já commitado de apostas do usuário
type Reader interface {
	CountBetsSince(ctx context.Context, userID string, since time.Time) (int64, error)
	// AvgStakeSince retorna ok=false quando não há apostas na janela
	AvgStakeSince(ctx context.Context, userID string, since time.Time) (avg decimal.Decimal, ok bool, err error)
}

// Notifier entrega um alerta para fora do processo
type Notifier interface {
	Notify(ctx context.Context, a events.FraudAlert) error
}

type Thresholds struct {
	VelocityWindow      time.Duration
	VelocityMaxBets     int64
	MagnitudeWindow     time.Duration
	MagnitudeMultiplier decimal.Decimal
}

// DefaultThresholds: mais de 10 apostas em 10 minutos, ou stake acima de 5x a média de 30 dias
func DefaultThresholds() Thresholds {
	return Thresholds{
		VelocityWindow:      10 * time.Minute,
		VelocityMaxBets:     10,
		MagnitudeWindow:     30 * 24 * time.Hour,
		MagnitudeMultiplier: decimal.NewFromInt(5),
	}
}

// ThresholdsFrom lê os limiares de FRAUD_* da configuração
func ThresholdsFrom(cfg config.Config) Thresholds {
	return Thresholds{
		VelocityWindow:      cfg.FraudVelocityWindow,
		VelocityMaxBets:     cfg.FraudVelocityMaxBets,
		MagnitudeWindow:     cfg.FraudMagnitudeWindow,
		MagnitudeMultiplier: cfg.FraudMagnitudeMultiplier,
	}
}

type Detector struct {
	Reader     Reader
	Notifier   Notifier // opcional
	Thresholds Thresholds
	Log        *zap.Logger
	Now        func() time.Time

	// Callbacks de métricas (opcionais)
	OnAlert func(kind string)
	OnError func()
}

func NewDetector(r Reader, th Thresholds, log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{Reader: r, Thresholds: th, Log: log, Now: time.Now}
}

// Evaluate roda as duas heurísticas e devolve os alertas disparados
func (d *Detector) Evaluate(ctx context.Context, userID string, stake decimal.Decimal) ([]events.FraudAlert, error) {
	now := d.Now()
	var alerts []events.FraudAlert

	n, err := d.Reader.CountBetsSince(ctx, userID, now.Add(-d.Thresholds.VelocityWindow))
	if err != nil {
		return nil, fmt.Errorf("count recent bets: %w", err)
	}
	if n > d.Thresholds.VelocityMaxBets {
		alerts = append(alerts, events.FraudAlert{
			Kind:       events.AlertVelocity,
			UserID:     userID,
			Stake:      stake.String(),
			Observed:   strconv.FormatInt(n, 10),
			Threshold:  strconv.FormatInt(d.Thresholds.VelocityMaxBets, 10),
			DetectedAt: now,
		})
	}

	avg, ok, err := d.Reader.AvgStakeSince(ctx, userID, now.Add(-d.Thresholds.MagnitudeWindow))
	if err != nil {
		return alerts, fmt.Errorf("average stake: %w", err)
	}
	if ok && avg.IsPositive() {
		limit := avg.Mul(d.Thresholds.MagnitudeMultiplier)
		if stake.GreaterThan(limit) {
			alerts = append(alerts, events.FraudAlert{
				Kind:       events.AlertMagnitude,
				UserID:     userID,
				Stake:      stake.String(),
				Observed:   avg.StringFixed(2),
				Threshold:  limit.StringFixed(2),
				DetectedAt: now,
			})
		}
	}
	return alerts, nil
}

// Scan é o ponto de entrada assíncrono: nunca retorna erro nem propaga panic
func (d *Detector) Scan(ctx context.Context, userID string, stake decimal.Decimal) {
	defer func() {
		if r := recover(); r != nil {
			d.Log.Error("fraud scan panic", zap.String("user_id", userID), zap.Any("panic", r))
			d.onError()
		}
	}()

	alerts, err := d.Evaluate(ctx, userID, stake)
	if err != nil {
		d.Log.Warn("fraud scan failed", zap.String("user_id", userID), zap.Error(err))
		d.onError()
	}
	for _, a := range alerts {
		d.Log.Warn("fraud alert",
			zap.String("kind", a.Kind),
			zap.String("user_id", a.UserID),
			zap.String("stake", a.Stake),
			zap.String("observed", a.Observed),
			zap.String("threshold", a.Threshold),
		)
		if d.OnAlert != nil {
			d.OnAlert(a.Kind)
		}
		if d.Notifier == nil {
			continue
		}
		if err := d.Notifier.Notify(ctx, a); err != nil {
			d.Log.Warn("fraud alert publish failed", zap.String("user_id", userID), zap.Error(err))
			d.onError()
		}
	}
}

func (d *Detector) onError() {
	if d.OnError != nil {
		d.OnError()
	}
}
