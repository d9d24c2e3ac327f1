package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
	"github.com/radieske/sports-wager-platform/internal/testutil"
	"github.com/radieske/sports-wager-platform/internal/wallet-service/repo"
)

func TestPostgresDepositWithdraw(t *testing.T) {
	db := testutil.OpenTestDB(t)
	p := repo.NewPostgres(db, testutil.TestCipher(t))
	ctx := context.Background()

	id, bal, err := p.GetOrCreateWallet(ctx, "w-user")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, bal.IsZero())

	id2, bal, err := p.Deposit(ctx, "w-user", decimal.RequireFromString("40.00"))
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	assert.True(t, bal.Equal(decimal.NewFromInt(40)))

	_, bal, err = p.Withdraw(ctx, "w-user", decimal.RequireFromString("15.50"))
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("24.50")))

	_, _, err = p.Withdraw(ctx, "w-user", decimal.RequireFromString("24.51"))
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	rows, err := db.QueryContext(ctx,
		`SELECT type, balance_before, balance_after FROM audit_transactions WHERE user_id='w-user' ORDER BY created_at`)
	require.NoError(t, err)
	defer rows.Close()
	var types []string
	for rows.Next() {
		var typ string
		var before, after decimal.Decimal
		require.NoError(t, rows.Scan(&typ, &before, &after))
		types = append(types, typ)
	}
	assert.Equal(t, []string{repo.TxDeposit, repo.TxWithdraw}, types)

	// o banco só guarda o saldo cifrado
	var ct []byte
	require.NoError(t, db.QueryRowContext(ctx, `SELECT balance_ciphertext FROM wallets WHERE user_id='w-user'`).Scan(&ct))
	assert.NotContains(t, string(ct), "24.5")
}

func TestPostgresListTransactions(t *testing.T) {
	db := testutil.OpenTestDB(t)
	p := repo.NewPostgres(db, testutil.TestCipher(t))
	ctx := context.Background()

	clock := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	p.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for _, amt := range []string{"10.00", "20.00", "30.00"} {
		_, _, err := p.Deposit(ctx, "h-user", decimal.RequireFromString(amt))
		require.NoError(t, err)
	}
	_, _, err := p.Withdraw(ctx, "h-user", decimal.RequireFromString("5.00"))
	require.NoError(t, err)
	_, _, err = p.Deposit(ctx, "other-user", decimal.RequireFromString("1.00"))
	require.NoError(t, err)

	txs, err := p.ListTransactions(ctx, "h-user", repo.DefaultTransactionsLimit, 0)
	require.NoError(t, err)
	require.Len(t, txs, 4)
	assert.Equal(t, repo.TxWithdraw, txs[0].Type)
	assert.True(t, txs[0].BalanceBefore.Equal(decimal.NewFromInt(60)))
	assert.True(t, txs[0].BalanceAfter.Equal(decimal.NewFromInt(55)))
	assert.Empty(t, txs[0].BetID)
	for i := 1; i < len(txs); i++ {
		assert.True(t, txs[i-1].CreatedAt.After(txs[i].CreatedAt))
	}

	page, err := p.ListTransactions(ctx, "h-user", 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].Amount.Equal(decimal.NewFromInt(30)))
	assert.True(t, page[1].Amount.Equal(decimal.NewFromInt(20)))

	none, err := p.ListTransactions(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
