package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Reading struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	ReadingDate time.Time       `json:"reading_date"`
	Value       decimal.Decimal `json:"value"`
}
