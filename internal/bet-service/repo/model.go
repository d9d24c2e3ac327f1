package repo

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-wager-platform/internal/shared/balance"
)

// ErrNotFound indica linha inexistente; as camadas acima traduzem para o erro de domínio
var ErrNotFound = errors.New("not found")

// ErrConcurrentUpdate indica que a versão da carteira mudou entre a leitura e a escrita
var ErrConcurrentUpdate = errors.New("wallet modified concurrently")

// Status de evento
const (
	EventScheduled = "SCHEDULED"
	EventLive      = "LIVE"
	EventFinished  = "FINISHED"
	EventCancelled = "CANCELLED"
)

// Status de aposta
const (
	BetPending   = "PENDING"
	BetCancelled = "CANCELLED"
)

// Tipos de lançamento no audit
const (
	TxBetPlaced = "BET_PLACED"
	TxDeposit   = "DEPOSIT"
	TxWithdraw  = "WITHDRAW"
)

// Event é o evento esportivo com as odds por mercado/seleção
type Event struct {
	ID        string
	Status    string
	StartTime time.Time
	Odds      map[string]map[string]decimal.Decimal // market -> selection -> odd
}

// OddsFor retorna a odd publicada para (market, selection)
func (e Event) OddsFor(market, selection string) (decimal.Decimal, bool) {
	sel, ok := e.Odds[market]
	if !ok {
		return decimal.Zero, false
	}
	odd, ok := sel[selection]
	return odd, ok
}

// Wallet guarda o saldo cifrado; Version é usado no compare-and-swap do débito
type Wallet struct {
	ID      string
	UserID  string
	Balance balance.Encrypted
	Version int64
}

// Bet é a aposta persistida no ledger
type Bet struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	EventID         string          `json:"event_id"`
	Market          string          `json:"market"`
	Selection       string          `json:"selection"`
	OddsAtPlacement decimal.Decimal `json:"odds"`
	Stake           decimal.Decimal `json:"stake"`
	PotentialPayout decimal.Decimal `json:"potential_payout"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AuditTransaction registra cada mutação de saldo (append-only)
type AuditTransaction struct {
	ID            string
	UserID        string
	WalletID      string
	Type          string
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	BetID         string // vazio para depósito/saque
	CreatedAt     time.Time
}

// SpendLimits são os limites de jogo responsável do usuário; nil = sem limite
type SpendLimits struct {
	UserID             string
	DailyCap           *decimal.Decimal
	WeeklyCap          *decimal.Decimal
	MonthlyCap         *decimal.Decimal
	MaxSingleStake     *decimal.Decimal
	SelfExclusionUntil *time.Time
}
