// Package placement orquestra a colocação de uma aposta simples.
//
// Evento, stake, saldo, limites e odds são validados e a aposta, o débito e o
// lançamento de auditoria são gravados numa única transação. Depois do commit a
// varredura de fraude é agendada e o evento bet_placed publicado, sem que o
// apostador espere por nenhum dos dois.
package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/bet-service/fraud"
	"github.com/radieske/sports-wager-platform/internal/bet-service/limits"
	"github.com/radieske/sports-wager-platform/internal/bet-service/repo"
	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
	"github.com/radieske/sports-wager-platform/internal/shared/balance"
	"github.com/radieske/sports-wager-platform/pkg/contracts/events"
)

// Request é a aposta pedida pelo usuário autenticado
type Request struct {
	EventID    string
	Market     string
	Selection  string
	QuotedOdds decimal.Decimal
	Stake      decimal.Decimal
}

type Cipher interface {
	Encrypt(amount decimal.Decimal) (balance.Encrypted, error)
	Decrypt(b balance.Encrypted) (decimal.Decimal, error)
}

// OddsSource resolve a odd corrente de uma seleção do evento
type OddsSource interface {
	CurrentOdd(ctx context.Context, ev repo.Event, market, selection string) (decimal.Decimal, error)
}

// Publisher publica a aposta confirmada para consumidores externos
type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

// MaxStakeScale: stakes aceitam no máximo centavos
const MaxStakeScale = 2

type Config struct {
	MinStake      decimal.Decimal
	OddsTolerance decimal.Decimal

	// AfterCommitTimeout limita agendamento de fraude + publicação
	AfterCommitTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinStake:           decimal.RequireFromString("1.00"),
		OddsTolerance:      decimal.RequireFromString("0.05"),
		AfterCommitTimeout: 5 * time.Second,
	}
}

// Outcome é o rótulo passado ao callback de métricas
const OutcomePlaced = "PLACED"

type Orchestrator struct {
	Ledger repo.Ledger
	Cipher Cipher
	Limits *limits.Evaluator
	Odds   OddsSource
	Config Config
	Log    *zap.Logger
	Now    func() time.Time
	NewID  func() string

	// Opcionais
	Scans     fraud.Scheduler
	Publisher Publisher
	OnOutcome func(outcome string)
}

func New(ledger repo.Ledger, c Cipher, lim *limits.Evaluator, odds OddsSource, cfg Config, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		Ledger: ledger,
		Cipher: c,
		Limits: lim,
		Odds:   odds,
		Config: cfg,
		Log:    log,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

// Place valida e grava a aposta. Em qualquer erro nada é persistido.
func (o *Orchestrator) Place(ctx context.Context, userID string, req Request) (repo.Bet, error) {
	var bet repo.Bet
	err := o.Ledger.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		b, err := o.placeTx(ctx, tx, userID, req)
		if err != nil {
			return err
		}
		bet = b
		return nil
	})
	if err != nil {
		err = classify(err)
		kind := apperr.KindOf(err)
		o.outcome(string(kind))
		fields := []zap.Field{
			zap.String("user_id", userID),
			zap.String("event_id", req.EventID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		}
		if kind == apperr.KindStoreFailure || kind == apperr.KindEncryptionFailure {
			o.Log.Error("bet placement failed", fields...)
		} else {
			o.Log.Info("bet rejected", fields...)
		}
		return repo.Bet{}, err
	}

	o.outcome(OutcomePlaced)
	o.Log.Info("bet placed",
		zap.String("bet_id", bet.ID),
		zap.String("user_id", userID),
		zap.String("event_id", bet.EventID),
		zap.String("stake", bet.Stake.String()),
		zap.String("odds", bet.OddsAtPlacement.String()),
	)
	o.afterCommit(ctx, bet)
	return bet, nil
}

func (o *Orchestrator) placeTx(ctx context.Context, tx repo.Tx, userID string, req Request) (repo.Bet, error) {
	now := o.Now()

	// 1) evento existe e ainda aceita apostas
	ev, err := tx.GetEvent(ctx, req.EventID)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.Bet{}, apperr.ErrEventNotFound
	}
	if err != nil {
		return repo.Bet{}, apperr.Wrap(apperr.KindStoreFailure, "load event", err)
	}
	if ev.Status != repo.EventScheduled || !ev.StartTime.After(now) {
		return repo.Bet{}, apperr.ErrEventNotAvailable
	}

	// 2) stake mínima, em centavos
	if req.Stake.LessThan(o.Config.MinStake) {
		return repo.Bet{}, fmt.Errorf("%w: must be at least %s", apperr.ErrInvalidStake, o.Config.MinStake.StringFixed(2))
	}
	if !req.Stake.Equal(req.Stake.Truncate(MaxStakeScale)) {
		return repo.Bet{}, fmt.Errorf("%w: at most %d decimal places", apperr.ErrInvalidStake, MaxStakeScale)
	}

	// 3) carteira travada até o commit; saldo decifrado
	w, err := tx.GetWalletForUpdate(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.Bet{}, apperr.ErrInsufficientFunds
	}
	if err != nil {
		return repo.Bet{}, apperr.Wrap(apperr.KindStoreFailure, "load wallet", err)
	}
	before, err := o.Cipher.Decrypt(w.Balance)
	if err != nil {
		return repo.Bet{}, err
	}
	if before.LessThan(req.Stake) {
		return repo.Bet{}, apperr.ErrInsufficientFunds
	}

	// 4) limites de jogo responsável
	if err := o.Limits.Check(ctx, tx, userID, req.Stake); err != nil {
		return repo.Bet{}, err
	}

	// 5) odds: tolerância absoluta, |cotada - atual| > tol rejeita
	current, err := o.Odds.CurrentOdd(ctx, ev, req.Market, req.Selection)
	if err != nil {
		return repo.Bet{}, err
	}
	if req.QuotedOdds.Sub(current).Abs().GreaterThan(o.Config.OddsTolerance) {
		return repo.Bet{}, apperr.New(apperr.KindOddsChanged,
			"odds changed from "+req.QuotedOdds.String()+" to "+current.String())
	}

	// 6) retorno potencial sempre sobre a odd atual
	bet := repo.Bet{
		ID:              o.NewID(),
		UserID:          userID,
		EventID:         ev.ID,
		Market:          req.Market,
		Selection:       req.Selection,
		OddsAtPlacement: current,
		Stake:           req.Stake,
		PotentialPayout: req.Stake.Mul(current),
		Status:          repo.BetPending,
		CreatedAt:       now,
	}

	// 7) aposta, débito e auditoria na mesma transação
	if err := tx.InsertBet(ctx, bet); err != nil {
		return repo.Bet{}, apperr.Wrap(apperr.KindStoreFailure, "insert bet", err)
	}
	after := before.Sub(req.Stake)
	enc, err := o.Cipher.Encrypt(after)
	if err != nil {
		return repo.Bet{}, err
	}
	if err := tx.UpdateWalletBalance(ctx, w, enc); err != nil {
		return repo.Bet{}, apperr.Wrap(apperr.KindStoreFailure, "debit wallet", err)
	}
	audit := repo.AuditTransaction{
		ID:            o.NewID(),
		UserID:        userID,
		WalletID:      w.ID,
		Type:          repo.TxBetPlaced,
		Amount:        req.Stake,
		BalanceBefore: before,
		BalanceAfter:  after,
		BetID:         bet.ID,
		CreatedAt:     now,
	}
	if err := tx.InsertAudit(ctx, audit); err != nil {
		return repo.Bet{}, apperr.Wrap(apperr.KindStoreFailure, "insert audit", err)
	}
	return bet, nil
}

// afterCommit agenda a varredura de fraude e publica bet_placed em background.
// Falhas aqui só geram log; a aposta já está gravada.
func (o *Orchestrator) afterCommit(ctx context.Context, bet repo.Bet) {
	if o.Scans == nil && o.Publisher == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.Log.Error("after commit panic", zap.String("bet_id", bet.ID), zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(base, o.afterCommitTimeout())
		defer cancel()

		if o.Scans != nil {
			req := fraud.ScanRequest{UserID: bet.UserID, Stake: bet.Stake}
			if err := o.Scans.Schedule(ctx, req); err != nil {
				o.Log.Warn("fraud scan not scheduled", zap.String("bet_id", bet.ID), zap.Error(err))
			}
		}
		if o.Publisher != nil {
			evt := events.BetPlaced{
				BetID:           bet.ID,
				UserID:          bet.UserID,
				EventID:         bet.EventID,
				Market:          bet.Market,
				Selection:       bet.Selection,
				Stake:           bet.Stake,
				Odds:            bet.OddsAtPlacement,
				PotentialPayout: bet.PotentialPayout,
			}
			if err := o.Publisher.PublishBetPlaced(ctx, evt); err != nil {
				o.Log.Warn("bet_placed publish failed", zap.String("bet_id", bet.ID), zap.Error(err))
			}
		}
	}()
}

func (o *Orchestrator) afterCommitTimeout() time.Duration {
	if o.Config.AfterCommitTimeout > 0 {
		return o.Config.AfterCommitTimeout
	}
	return 5 * time.Second
}

func (o *Orchestrator) outcome(v string) {
	if o.OnOutcome != nil {
		o.OnOutcome(v)
	}
}

// classify garante que todo erro saindo do pipeline é um *apperr.Error
func classify(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if apperr.KindOf(err) != apperr.KindStoreFailure {
		return err
	}
	return apperr.Wrap(apperr.KindStoreFailure, "bet transaction", err)
}
