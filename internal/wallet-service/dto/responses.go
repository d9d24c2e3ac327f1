package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type WalletResponse struct {
	UserID   string          `json:"userId"`
	WalletID string          `json:"walletId"`
	Balance  decimal.Decimal `json:"balance"`
}

// TransactionResponse é um lançamento do histórico da carteira
type TransactionResponse struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	BetID         string          `json:"betId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
