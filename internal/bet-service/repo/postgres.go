package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-wager-platform/internal/shared/balance"
)

// Postgres implementa o ledger de apostas (eventos, carteiras, apostas, auditoria, limites)
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// WithinTx abre uma transação READ COMMITTED; a exclusão por carteira vem do FOR UPDATE
// em GetWalletForUpdate, mais o compare-and-swap de versão no UPDATE
func (p *Postgres) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct{ tx *sql.Tx }

// GetEvent carrega o evento (FOR SHARE impede mudança de status até o commit) e suas odds
func (t *pgTx) GetEvent(ctx context.Context, eventID string) (Event, error) {
	var ev Event
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, status, start_time FROM events WHERE id=$1 FOR SHARE`, eventID,
	).Scan(&ev.ID, &ev.Status, &ev.StartTime)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("select event: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx,
		`SELECT market, selection, odds FROM event_odds WHERE event_id=$1`, eventID)
	if err != nil {
		return Event{}, fmt.Errorf("select event odds: %w", err)
	}
	defer rows.Close()

	ev.Odds = make(map[string]map[string]decimal.Decimal)
	for rows.Next() {
		var market, selection string
		var odd decimal.Decimal
		if err := rows.Scan(&market, &selection, &odd); err != nil {
			return Event{}, fmt.Errorf("scan event odds: %w", err)
		}
		if ev.Odds[market] == nil {
			ev.Odds[market] = make(map[string]decimal.Decimal)
		}
		ev.Odds[market][selection] = odd
	}
	return ev, rows.Err()
}

func (t *pgTx) GetWalletForUpdate(ctx context.Context, userID string) (Wallet, error) {
	var w Wallet
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, balance_ciphertext, balance_nonce, version
		FROM wallets WHERE user_id=$1 FOR UPDATE`, userID,
	).Scan(&w.ID, &w.UserID, &w.Balance.Ciphertext, &w.Balance.Nonce, &w.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return Wallet{}, ErrNotFound
	}
	if err != nil {
		return Wallet{}, fmt.Errorf("select wallet: %w", err)
	}
	return w, nil
}

func (t *pgTx) UpdateWalletBalance(ctx context.Context, w Wallet, next balance.Encrypted) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance_ciphertext=$1, balance_nonce=$2, version=version+1, updated_at=NOW()
		WHERE id=$3 AND version=$4`,
		next.Ciphertext, next.Nonce, w.ID, w.Version)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update wallet rows: %w", err)
	}
	if n != 1 {
		return ErrConcurrentUpdate
	}
	return nil
}

func (t *pgTx) InsertBet(ctx context.Context, b Bet) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO bets (id, user_id, event_id, market, selection, odds, stake, potential_payout, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		b.ID, b.UserID, b.EventID, b.Market, b.Selection,
		b.OddsAtPlacement, b.Stake, b.PotentialPayout, b.Status, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}
	return nil
}

func (t *pgTx) InsertAudit(ctx context.Context, a AuditTransaction) error {
	betID := sql.NullString{String: a.BetID, Valid: a.BetID != ""}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO audit_transactions (id, user_id, wallet_id, type, amount, balance_before, balance_after, bet_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.UserID, a.WalletID, a.Type, a.Amount, a.BalanceBefore, a.BalanceAfter, betID, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func (t *pgTx) GetSpendLimits(ctx context.Context, userID string) (SpendLimits, error) {
	l := SpendLimits{UserID: userID}
	var daily, weekly, monthly, maxSingle decimal.NullDecimal
	var exclusion sql.NullTime
	err := t.tx.QueryRowContext(ctx, `
		SELECT daily_cap, weekly_cap, monthly_cap, max_single_stake, self_exclusion_until
		FROM spend_limits WHERE user_id=$1`, userID,
	).Scan(&daily, &weekly, &monthly, &maxSingle, &exclusion)
	if errors.Is(err, sql.ErrNoRows) {
		return SpendLimits{}, ErrNotFound
	}
	if err != nil {
		return SpendLimits{}, fmt.Errorf("select spend limits: %w", err)
	}
	l.DailyCap = nullable(daily)
	l.WeeklyCap = nullable(weekly)
	l.MonthlyCap = nullable(monthly)
	l.MaxSingleStake = nullable(maxSingle)
	if exclusion.Valid {
		l.SelfExclusionUntil = &exclusion.Time
	}
	return l, nil
}

func (t *pgTx) SumStakesSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(stake), 0) FROM bets
		WHERE user_id=$1 AND status <> 'CANCELLED' AND created_at > $2`, userID, since,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum stakes: %w", err)
	}
	return sum, nil
}

// CountBetsSince conta apostas do usuário a partir de since (leitura fora da transação)
func (p *Postgres) CountBetsSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var n int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bets WHERE user_id=$1 AND created_at > $2`, userID, since).Scan(&n)
	return n, err
}

// AvgStakeSince retorna a stake média; ok=false quando não há apostas na janela
func (p *Postgres) AvgStakeSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, bool, error) {
	var avg decimal.NullDecimal
	err := p.db.QueryRowContext(ctx,
		`SELECT AVG(stake) FROM bets WHERE user_id=$1 AND created_at > $2`, userID, since).Scan(&avg)
	if err != nil {
		return decimal.Zero, false, err
	}
	return avg.Decimal, avg.Valid, nil
}

// GetBet retorna a aposta somente se pertencer ao usuário
func (p *Postgres) GetBet(ctx context.Context, userID, betID string) (Bet, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, event_id, market, selection, odds, stake, potential_payout, status, created_at
		FROM bets WHERE id=$1 AND user_id=$2`, betID, userID)
	b, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Bet{}, ErrNotFound
	}
	return b, err
}

// ListBets lista as apostas do usuário, mais recentes primeiro
func (p *Postgres) ListBets(ctx context.Context, userID string, limit, offset int) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, event_id, market, selection, odds, stake, potential_payout, status, created_at
		FROM bets WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanBet(s scanner) (Bet, error) {
	var b Bet
	err := s.Scan(&b.ID, &b.UserID, &b.EventID, &b.Market, &b.Selection,
		&b.OddsAtPlacement, &b.Stake, &b.PotentialPayout, &b.Status, &b.CreatedAt)
	return b, err
}

func nullable(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
