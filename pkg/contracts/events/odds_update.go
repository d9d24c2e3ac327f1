package events

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Evento publicado no tópico "odds_updates" pelo odds-ingest-service.
// Selections mapeia cada seleção do mercado para a odd atual.
type OddsUpdate struct {
	EventID    string                     `json:"event_id"`
	Market     string                     `json:"market"`
	Selections map[string]decimal.Decimal `json:"selections"`
	UpdatedAt  time.Time                  `json:"updated_at"`
	Source     string                     `json:"source"`
	Version    int64                      `json:"version"` // incrementado a cada atualização
}

// Validate rejeita atualizações sem identificação ou com odds não positivas
func (u OddsUpdate) Validate() error {
	if u.EventID == "" || u.Market == "" {
		return errors.New("event_id and market are required")
	}
	if len(u.Selections) == 0 {
		return errors.New("no selections")
	}
	for sel, odd := range u.Selections {
		if sel == "" || !odd.IsPositive() {
			return errors.New("invalid odds for selection " + sel)
		}
	}
	return nil
}
