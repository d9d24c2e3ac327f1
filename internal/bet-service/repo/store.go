package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-wager-platform/internal/shared/balance"
)

// Tx são as operações disponíveis dentro da unidade de trabalho da aposta
// Todas as leituras e a escrita final compartilham a mesma transação
type Tx interface {
	GetEvent(ctx context.Context, eventID string) (Event, error)
	// GetWalletForUpdate trava a linha da carteira até o fim da transação
	GetWalletForUpdate(ctx context.Context, userID string) (Wallet, error)
	// UpdateWalletBalance grava o novo saldo se a versão ainda for w.Version
	UpdateWalletBalance(ctx context.Context, w Wallet, next balance.Encrypted) error
	InsertBet(ctx context.Context, b Bet) error
	InsertAudit(ctx context.Context, a AuditTransaction) error

	GetSpendLimits(ctx context.Context, userID string) (SpendLimits, error)
	SumStakesSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error)
}

// Ledger executa fn numa transação; erro em fn faz rollback de tudo
type Ledger interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
