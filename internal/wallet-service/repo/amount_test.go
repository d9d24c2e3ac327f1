package repo

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
)

func TestValidateAmount(t *testing.T) {
	for _, ok := range []string{"0.01", "10", "10.5", "99999.99"} {
		assert.NoError(t, ValidateAmount(decimal.RequireFromString(ok)), ok)
	}
	for _, bad := range []string{"0", "-1", "0.001", "10.999"} {
		err := ValidateAmount(decimal.RequireFromString(bad))
		assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err), bad)
		assert.ErrorIs(t, err, apperr.ErrInvalid, bad)
	}
}

func TestApply(t *testing.T) {
	got, err := Apply(TxDeposit, decimal.RequireFromString("10.00"), decimal.RequireFromString("0.10"))
	require.NoError(t, err)
	assert.Equal(t, "10.1", got.String())

	got, err = Apply(TxWithdraw, decimal.RequireFromString("10.00"), decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = Apply(TxWithdraw, decimal.RequireFromString("10.00"), decimal.RequireFromString("10.01"))
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	_, err = Apply("REFUND", decimal.Zero, decimal.NewFromInt(1))
	assert.Error(t, err)
}
