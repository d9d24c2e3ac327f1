package repo

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
)

// MaxAmountScale: valores monetários aceitam no máximo centavos
const MaxAmountScale = 2

// ValidateAmount exige valor positivo com até duas casas decimais
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", apperr.ErrInvalid)
	}
	if !amount.Equal(amount.Truncate(MaxAmountScale)) {
		return fmt.Errorf("%w: amount must have at most %d decimal places", apperr.ErrInvalid, MaxAmountScale)
	}
	return nil
}

// Apply calcula o saldo após o lançamento
func Apply(kind string, before, amount decimal.Decimal) (decimal.Decimal, error) {
	switch kind {
	case TxDeposit:
		return before.Add(amount), nil
	case TxWithdraw:
		if before.LessThan(amount) {
			return decimal.Zero, apperr.ErrInsufficientFunds
		}
		return before.Sub(amount), nil
	default:
		return decimal.Zero, apperr.New(apperr.KindInvalid, "unknown transaction type "+kind)
	}
}
