package dto

import "github.com/shopspring/decimal"

// PlaceBetRequest: valores monetários e odds chegam como string decimal ("10.00")
type PlaceBetRequest struct {
	EventID   string          `json:"eventId"`
	Market    string          `json:"market"`    // ex: "1x2"
	Selection string          `json:"selection"` // ex: "home" | "draw" | "away"
	Stake     decimal.Decimal `json:"stake"`
	Odds      decimal.Decimal `json:"odds"` // odd que o cliente viu
}
