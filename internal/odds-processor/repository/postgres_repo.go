package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/radieske/sports-wager-platform/pkg/contracts/events"
)

// PostgresRepo implementa operações de persistência de odds em um banco Postgres
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// UpsertCurrent grava a odd corrente de cada seleção em event_odds numa única transação
// Atualizações com versão menor ou igual à gravada são ignoradas (mensagem fora de ordem)
func (r *PostgresRepo) UpsertCurrent(ctx context.Context, e events.OddsUpdate) error {
	const q = `
		INSERT INTO event_odds
		  (event_id, market, selection, odds, version, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (event_id, market, selection) DO UPDATE SET
		  odds       = EXCLUDED.odds,
		  version    = EXCLUDED.version,
		  updated_at = EXCLUDED.updated_at
		WHERE event_odds.version < EXCLUDED.version
	`
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for sel, odd := range e.Selections {
		if _, err := tx.ExecContext(ctx, q, e.EventID, e.Market, sel, odd, e.Version, e.UpdatedAt); err != nil {
			return fmt.Errorf("upsert %s/%s/%s: %w", e.EventID, e.Market, sel, err)
		}
	}
	return tx.Commit()
}
