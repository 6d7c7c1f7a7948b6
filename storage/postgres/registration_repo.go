package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"plotbot/pkg/logger"
	"plotbot/pkg/models"
	"plotbot/storage"
)

type registrationRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewRegistrationRepo(db *pgxpool.Pool, log logger.ILogger) storage.IRegistrationStorage {
	return &registrationRepo{db: db, log: log}
}

func (r *registrationRepo) Get(ctx context.Context, viberID string) (*models.PendingRegistration, error) {
	var p models.PendingRegistration
	query := `SELECT viber_id, phone, created_at FROM temp_registrations WHERE viber_id = $1`
	err := r.db.QueryRow(ctx, query, viberID).Scan(&p.ViberID, &p.Phone, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get pending registration", logger.Error(err))
		return nil, err
	}
	return &p, nil
}

// Upsert restarts the challenge if the identity sends a phone again.
func (r *registrationRepo) Upsert(ctx context.Context, viberID, phone string) error {
	query := `
		INSERT INTO temp_registrations (viber_id, phone)
		VALUES ($1, $2)
		ON CONFLICT (viber_id) DO UPDATE
		SET phone = EXCLUDED.phone, created_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, viberID, phone)
	if err != nil {
		r.log.Error("failed to save pending registration", logger.Error(err))
	}
	return err
}

func (r *registrationRepo) Delete(ctx context.Context, viberID string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM temp_registrations WHERE viber_id = $1", viberID)
	return err
}

func (r *registrationRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM temp_registrations WHERE created_at < $1", before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
