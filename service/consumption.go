package service

import (
	"time"

	"github.com/shopspring/decimal"

	"plotbot/pkg/models"
)

const (
	consumptionWindow = 6
	averageOver       = 3
)

type MonthlyUsage struct {
	From time.Time
	To   time.Time
	KWh  decimal.Decimal
}

type ConsumptionReport struct {
	Months  []MonthlyUsage
	Average decimal.NullDecimal
}

// Sufficient is false when fewer than two readings were available.
func (r ConsumptionReport) Sufficient() bool {
	return len(r.Months) > 0
}

// Consumption takes readings newest first and returns the delta between each
// consecutive pair. The average covers up to the three most recent deltas and
// is only set when at least two deltas exist.
func Consumption(readings []*models.Reading) ConsumptionReport {
	var report ConsumptionReport
	for i := 0; i+1 < len(readings); i++ {
		newer, older := readings[i], readings[i+1]
		report.Months = append(report.Months, MonthlyUsage{
			From: older.ReadingDate,
			To:   newer.ReadingDate,
			KWh:  newer.Value.Sub(older.Value),
		})
	}

	if len(report.Months) >= 2 {
		n := min(len(report.Months), averageOver)
		sum := decimal.Zero
		for _, m := range report.Months[:n] {
			sum = sum.Add(m.KWh)
		}
		report.Average = decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(int64(n))).Round(1))
	}
	return report
}
