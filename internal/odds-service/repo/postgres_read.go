package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ErrNotFound indica evento inexistente
var ErrNotFound = errors.New("event not found")

// Status de evento expostos na consulta
const (
	StatusScheduled = "SCHEDULED"
	StatusLive      = "LIVE"
	StatusFinished  = "FINISHED"
	StatusCancelled = "CANCELLED"
)

// ValidStatus informa se s é um status de evento conhecido
func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusLive, StatusFinished, StatusCancelled:
		return true
	}
	return false
}

// Event é o evento com as odds gravadas de cada seleção
type Event struct {
	ID        string
	HomeTeam  string
	AwayTeam  string
	Status    string
	StartTime time.Time
	Odds      []Odd
}

// Odd é o preço de uma seleção; Live indica que veio do Redis e não do banco
type Odd struct {
	Market    string
	Selection string
	Price     decimal.Decimal
	Version   int64
	UpdatedAt time.Time
	Live      bool
}

// EventFilter: sem Status lista os eventos abertos (LIVE e SCHEDULED ainda não iniciados)
type EventFilter struct {
	Status string
	Now    time.Time
	Limit  int
}

// ReadRepo consulta eventos e odds em modo somente leitura
type ReadRepo struct {
	db *sql.DB
}

func NewReadRepo(db *sql.DB) *ReadRepo {
	return &ReadRepo{db: db}
}

// ListEvents lista eventos por horário de início; SCHEDULED só entra se ainda não começou
func (r *ReadRepo) ListEvents(ctx context.Context, f EventFilter) ([]Event, error) {
	const q = `
		SELECT id, home_team, away_team, status, start_time
		FROM events
		WHERE ($1 = '' AND (status = 'LIVE' OR (status = 'SCHEDULED' AND start_time > $2)))
		   OR ($1 <> '' AND status = $1 AND (status <> 'SCHEDULED' OR start_time > $2))
		ORDER BY start_time ASC, id ASC
		LIMIT $3`
	rows, err := r.db.QueryContext(ctx, q, f.Status, f.Now, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	idx := map[string]int{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.HomeTeam, &e.AwayTeam, &e.Status, &e.StartTime); err != nil {
			return nil, err
		}
		idx[e.ID] = len(out)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(out))
	for _, e := range out {
		ids = append(ids, e.ID)
	}
	odds, err := r.oddsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, list := range odds {
		out[idx[id]].Odds = list
	}
	return out, nil
}

// GetEvent retorna o evento com todas as odds, em qualquer status
func (r *ReadRepo) GetEvent(ctx context.Context, id string) (Event, error) {
	var e Event
	err := r.db.QueryRowContext(ctx, `
		SELECT id, home_team, away_team, status, start_time
		FROM events WHERE id = $1`, id).
		Scan(&e.ID, &e.HomeTeam, &e.AwayTeam, &e.Status, &e.StartTime)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, err
	}
	odds, err := r.oddsFor(ctx, []string{id})
	if err != nil {
		return Event{}, err
	}
	e.Odds = odds[id]
	return e, nil
}

func (r *ReadRepo) oddsFor(ctx context.Context, ids []string) (map[string][]Odd, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, market, selection, odds, version, updated_at
		FROM event_odds
		WHERE event_id = ANY($1)
		ORDER BY event_id, market, selection`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]Odd, len(ids))
	for rows.Next() {
		var eventID string
		var o Odd
		if err := rows.Scan(&eventID, &o.Market, &o.Selection, &o.Price, &o.Version, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out[eventID] = append(out[eventID], o)
	}
	return out, rows.Err()
}
