package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
)

// Paginação do histórico
const (
	DefaultTransactionsLimit = 50
	MaxTransactionsLimit     = 100
)

// Transaction é um lançamento da trilha de auditoria: depósito, saque ou débito de aposta
type Transaction struct {
	ID            string
	Type          string
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	BetID         string // vazio fora de BET_PLACED
	CreatedAt     time.Time
}

// ListTransactions lista os lançamentos do usuário, mais recentes primeiro
func (p *Postgres) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, type, amount, balance_before, balance_after, bet_id, created_at
		FROM audit_transactions WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreFailure, "list transactions", err)
	}
	defer rows.Close()

	out := []Transaction{}
	for rows.Next() {
		var t Transaction
		var betID sql.NullString
		if err := rows.Scan(&t.ID, &t.Type, &t.Amount, &t.BalanceBefore, &t.BalanceAfter, &betID, &t.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreFailure, "scan transaction", err)
		}
		t.BetID = betID.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreFailure, "list transactions", err)
	}
	return out, nil
}
