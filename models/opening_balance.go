package models

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an opening balance does not carry
// exactly one positive side.
var ErrInvalidAmount = errors.New("exactly one of debit or credit must be positive")

// OpeningBalance is the opening entry of a ledger account.
type OpeningBalance struct {
	AccountID string          `json:"accountId" validate:"required"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Date      string          `json:"date" validate:"required,datetime=2006-01-02"`
	Narration string          `json:"narration,omitempty" validate:"max=500"`
}

// Validate checks the required fields and the debit/credit rule
func (o *OpeningBalance) Validate() error {
	if err := validate.Struct(o); err != nil {
		return err
	}
	if o.Debit.IsNegative() || o.Credit.IsNegative() {
		return ErrInvalidAmount
	}
	if o.Debit.IsPositive() == o.Credit.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Amount returns the signed balance: positive for debit, negative for credit.
func (o *OpeningBalance) Amount() decimal.Decimal {
	return o.Debit.Sub(o.Credit)
}
