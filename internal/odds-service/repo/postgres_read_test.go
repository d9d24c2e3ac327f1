package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-wager-platform/internal/odds-service/repo"
	"github.com/radieske/sports-wager-platform/internal/testutil"
)

func TestReadRepoListAndGet(t *testing.T) {
	db := testutil.OpenTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	events := []struct {
		id, status string
		start      time.Time
	}{
		{"evt-late", repo.StatusScheduled, now.Add(3 * time.Hour)},
		{"evt-soon", repo.StatusScheduled, now.Add(time.Hour)},
		{"evt-live", repo.StatusLive, now.Add(-30 * time.Minute)},
		{"evt-stale", repo.StatusScheduled, now.Add(-time.Minute)},
		{"evt-done", repo.StatusFinished, now.Add(-3 * time.Hour)},
	}
	for _, e := range events {
		_, err := db.ExecContext(ctx,
			`INSERT INTO events (id, home_team, away_team, status, start_time) VALUES ($1, 'Home', 'Away', $2, $3)`,
			e.id, e.status, e.start)
		require.NoError(t, err)
	}
	for _, o := range []struct{ event, sel, odds string }{
		{"evt-soon", "home", "1.85"},
		{"evt-soon", "away", "2.10"},
		{"evt-live", "draw", "3.40"},
	} {
		_, err := db.ExecContext(ctx,
			`INSERT INTO event_odds (event_id, market, selection, odds, version) VALUES ($1, '1x2', $2, $3, 2)`,
			o.event, o.sel, o.odds)
		require.NoError(t, err)
	}

	r := repo.NewReadRepo(db)

	open, err := r.ListEvents(ctx, repo.EventFilter{Now: now, Limit: 10})
	require.NoError(t, err)
	var ids []string
	for _, e := range open {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"evt-live", "evt-soon", "evt-late"}, ids)

	soon := open[1]
	assert.Equal(t, "Home", soon.HomeTeam)
	require.Len(t, soon.Odds, 2)
	assert.Equal(t, "away", soon.Odds[0].Selection)
	assert.True(t, soon.Odds[0].Price.Equal(decimal.RequireFromString("2.10")))
	assert.Equal(t, int64(2), soon.Odds[0].Version)
	assert.Empty(t, open[2].Odds)

	limited, err := r.ListEvents(ctx, repo.EventFilter{Now: now, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "evt-live", limited[0].ID)

	finished, err := r.ListEvents(ctx, repo.EventFilter{Status: repo.StatusFinished, Now: now, Limit: 10})
	require.NoError(t, err)
	require.Len(t, finished, 1)
	assert.Equal(t, "evt-done", finished[0].ID)

	// SCHEDULED já iniciado não é oferecido
	scheduled, err := r.ListEvents(ctx, repo.EventFilter{Status: repo.StatusScheduled, Now: now, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, scheduled, 2)

	got, err := r.GetEvent(ctx, "evt-live")
	require.NoError(t, err)
	assert.Equal(t, repo.StatusLive, got.Status)
	require.Len(t, got.Odds, 1)
	assert.Equal(t, "draw", got.Odds[0].Selection)

	_, err = r.GetEvent(ctx, "nope")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
