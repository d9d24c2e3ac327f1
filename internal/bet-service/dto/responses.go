package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type BetResponse struct {
	BetID           string          `json:"betId"`
	EventID         string          `json:"eventId"`
	Market          string          `json:"market"`
	Selection       string          `json:"selection"`
	Stake           decimal.Decimal `json:"stake"`
	Odds            decimal.Decimal `json:"odds"`
	PotentialPayout decimal.Decimal `json:"potentialPayout"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type BetListResponse struct {
	Bets   []BetResponse `json:"bets"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
