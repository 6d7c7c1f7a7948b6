package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"plotbot/pkg/models"
	"plotbot/storage"
)

// Ledger is the read side of readings, payments and tariffs.
type Ledger struct {
	stg      storage.IStorage
	fallback decimal.Decimal
}

func NewLedger(stg storage.IStorage, fallback decimal.Decimal) *Ledger {
	return &Ledger{stg: stg, fallback: fallback}
}

func (l *Ledger) CurrentTariff(ctx context.Context) (decimal.Decimal, error) {
	t, err := l.stg.Tariff().GetLatest(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if t == nil {
		return l.fallback, nil
	}
	return t.Value, nil
}

func (l *Ledger) TariffAt(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	t, err := l.stg.Tariff().GetEffectiveAt(ctx, date)
	if err != nil {
		return decimal.Zero, err
	}
	if t == nil {
		return l.fallback, nil
	}
	return t.Value, nil
}

// PaymentTariff is the tariff joined to the payment row, or the fallback.
func (l *Ledger) PaymentTariff(p *models.Payment) decimal.Decimal {
	if p.Tariff.Valid {
		return p.Tariff.Decimal
	}
	return l.fallback
}

func (l *Ledger) LastReadings(ctx context.Context, userID int64, n int) ([]*models.Reading, error) {
	return l.stg.Reading().GetLast(ctx, userID, n)
}

func (l *Ledger) LatestPayment(ctx context.Context, userID int64) (*models.Payment, error) {
	return l.stg.Payment().GetLatest(ctx, userID)
}

// HasReadingInMonth reports whether a reading exists in the calendar month of day.
func (l *Ledger) HasReadingInMonth(ctx context.Context, userID int64, day time.Time) (bool, error) {
	from := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	return l.stg.Reading().ExistsBetween(ctx, userID, from, from.AddDate(0, 1, 0))
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatKWh(d decimal.Decimal) string {
	return d.String()
}
