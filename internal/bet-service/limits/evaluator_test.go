package limits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-wager-platform/internal/bet-service/repo"
	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
)

var now = time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)

type stakeEntry struct {
	at    time.Time
	stake decimal.Decimal
}

type fakeReader struct {
	limits   *repo.SpendLimits
	history  []stakeEntry
	sumErr   error
	sumCalls int
}

func (f *fakeReader) GetSpendLimits(_ context.Context, _ string) (repo.SpendLimits, error) {
	if f.limits == nil {
		return repo.SpendLimits{}, repo.ErrNotFound
	}
	return *f.limits, nil
}

func (f *fakeReader) SumStakesSince(_ context.Context, _ string, since time.Time) (decimal.Decimal, error) {
	f.sumCalls++
	if f.sumErr != nil {
		return decimal.Zero, f.sumErr
	}
	sum := decimal.Zero
	for _, e := range f.history {
		if e.at.After(since) {
			sum = sum.Add(e.stake)
		}
	}
	return sum, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func TestDailyCapBoundary(t *testing.T) {
	r := &fakeReader{
		limits:  &repo.SpendLimits{UserID: "u1", DailyCap: dp("100.00")},
		history: []stakeEntry{{at: now.Add(-2 * time.Hour), stake: d("95.00")}},
	}
	e := NewEvaluator(func() time.Time { return now })

	assert.NoError(t, e.Check(context.Background(), r, "u1", d("5.00")))

	err := e.Check(context.Background(), r, "u1", d("5.01"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrLimitExceeded))
	assert.Contains(t, err.Error(), "daily limit of 100.00 exceeded")
}

func TestStakesOutsideWindowAreIgnored(t *testing.T) {
	r := &fakeReader{
		limits: &repo.SpendLimits{UserID: "u1", DailyCap: dp("100.00")},
		history: []stakeEntry{
			{at: now.Add(-25 * time.Hour), stake: d("95.00")},
			{at: now.Add(-time.Hour), stake: d("10.00")},
		},
	}
	e := NewEvaluator(func() time.Time { return now })
	assert.NoError(t, e.Check(context.Background(), r, "u1", d("90.00")))
}

func TestWeeklyAndMonthlyCaps(t *testing.T) {
	r := &fakeReader{
		limits: &repo.SpendLimits{
			UserID:     "u1",
			DailyCap:   dp("1000"),
			WeeklyCap:  dp("200"),
			MonthlyCap: dp("300"),
		},
		history: []stakeEntry{
			{at: now.Add(-3 * Day), stake: d("150")},
			{at: now.Add(-20 * Day), stake: d("120")},
		},
	}
	e := NewEvaluator(func() time.Time { return now })

	err := e.Check(context.Background(), r, "u1", d("60"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weekly")

	err = e.Check(context.Background(), r, "u1", d("40"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monthly")

	assert.NoError(t, e.Check(context.Background(), r, "u1", d("30")))
}

func TestSelfExclusionLocksAccount(t *testing.T) {
	until := now.Add(48 * time.Hour)
	r := &fakeReader{limits: &repo.SpendLimits{UserID: "u1", SelfExclusionUntil: &until, MaxSingleStake: dp("1")}}
	e := NewEvaluator(func() time.Time { return now })

	err := e.Check(context.Background(), r, "u1", d("50"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindAccountLocked, apperr.KindOf(err))
}

func TestExpiredSelfExclusionIsIgnored(t *testing.T) {
	until := now.Add(-time.Minute)
	r := &fakeReader{limits: &repo.SpendLimits{UserID: "u1", SelfExclusionUntil: &until}}
	e := NewEvaluator(func() time.Time { return now })
	assert.NoError(t, e.Check(context.Background(), r, "u1", d("50")))
}

func TestMaxSingleStakeCheckedBeforeWindows(t *testing.T) {
	r := &fakeReader{limits: &repo.SpendLimits{UserID: "u1", MaxSingleStake: dp("25.00"), DailyCap: dp("10.00")}}
	e := NewEvaluator(func() time.Time { return now })

	err := e.Check(context.Background(), r, "u1", d("25.01"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single bet limit of 25.00")
	assert.Zero(t, r.sumCalls)
}

func TestNoLimitsApproves(t *testing.T) {
	e := NewEvaluator(func() time.Time { return now })
	assert.NoError(t, e.Check(context.Background(), &fakeReader{}, "u1", d("100000")))
}

func TestStoreFailure(t *testing.T) {
	r := &fakeReader{
		limits: &repo.SpendLimits{UserID: "u1", DailyCap: dp("100")},
		sumErr: errors.New("connection reset"),
	}
	e := NewEvaluator(func() time.Time { return now })

	err := e.Check(context.Background(), r, "u1", d("1"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindStoreFailure, apperr.KindOf(err))
}
