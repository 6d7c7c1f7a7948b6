package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Tariff struct {
	ID            int64           `json:"id"`
	Value         decimal.Decimal `json:"value"`
	EffectiveDate time.Time       `json:"effective_date"`
}
