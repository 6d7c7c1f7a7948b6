package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"plotbot/pkg/logger"
	"plotbot/pkg/models"
	"plotbot/storage"
)

type paymentRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewPaymentRepo(db *pgxpool.Pool, log logger.ILogger) storage.IPaymentStorage {
	return &paymentRepo{db: db, log: log}
}

func (r *paymentRepo) GetLatest(ctx context.Context, userID int64) (*models.Payment, error) {
	var p models.Payment
	query := `
		SELECT p.id, p.user_id, p.payment_date, p.paid_reading, p.unpaid_kwh, p.debt,
			(SELECT t.value FROM tariff t WHERE t.effective_date <= p.payment_date
			 ORDER BY t.effective_date DESC, t.id DESC LIMIT 1) AS tariff
		FROM payments p
		WHERE p.user_id = $1
		ORDER BY p.payment_date DESC, p.id DESC
		LIMIT 1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.ID, &p.UserID, &p.PaymentDate, &p.PaidReading, &p.UnpaidKWh, &p.Debt, &p.Tariff,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get latest payment", logger.Int64("user_id", userID), logger.Error(err))
		return nil, err
	}
	return &p, nil
}
