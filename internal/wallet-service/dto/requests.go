package dto

import "github.com/shopspring/decimal"

// AmountRequest é usado por depósito e saque; valor como string decimal ("25.00")
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}
