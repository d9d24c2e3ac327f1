package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// OddResponse é o preço corrente de uma seleção
type OddResponse struct {
	Market    string          `json:"market"`
	Selection string          `json:"selection"`
	Odds      decimal.Decimal `json:"odds"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Live      bool            `json:"live"`
}

// EventResponse representa um evento esportivo (ex: partida de futebol) com suas odds
type EventResponse struct {
	ID        string        `json:"id"`
	HomeTeam  string        `json:"homeTeam"`
	AwayTeam  string        `json:"awayTeam"`
	Status    string        `json:"status"`
	StartTime time.Time     `json:"startTime"`
	Odds      []OddResponse `json:"odds"`
}

type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Limit  int             `json:"limit"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
