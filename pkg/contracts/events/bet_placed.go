package events

import "github.com/shopspring/decimal"

// Evento publicado no tópico "bet_placed" após o commit da aposta.
// Valores monetários e odds trafegam como string decimal.
type BetPlaced struct {
	BetID           string          `json:"bet_id"`
	UserID          string          `json:"user_id"`
	EventID         string          `json:"event_id"`
	Market          string          `json:"market"`
	Selection       string          `json:"selection"`
	Stake           decimal.Decimal `json:"stake"`
	Odds            decimal.Decimal `json:"odds"`
	PotentialPayout decimal.Decimal `json:"potential_payout"`
	TsUnixMs        int64           `json:"ts_unix_ms"`
}
