package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment carries fields derived at insert time. UnpaidKWh and Debt are not
// recalculated when later readings or tariffs change.
type Payment struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	PaymentDate time.Time       `json:"payment_date"`
	PaidReading decimal.Decimal `json:"paid_reading"`
	UnpaidKWh   decimal.Decimal `json:"unpaid_kwh"`
	Debt        decimal.Decimal `json:"debt"`

	// Tariff in effect on PaymentDate, filled by joined queries only.
	Tariff decimal.NullDecimal `json:"tariff"`
}
