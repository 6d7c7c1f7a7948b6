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

type tariffRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewTariffRepo(db *pgxpool.Pool, log logger.ILogger) storage.ITariffStorage {
	return &tariffRepo{db: db, log: log}
}

func (r *tariffRepo) GetLatest(ctx context.Context) (*models.Tariff, error) {
	query := `SELECT id, value, effective_date FROM tariff ORDER BY effective_date DESC, id DESC LIMIT 1`
	return r.getOne(ctx, query)
}

func (r *tariffRepo) GetEffectiveAt(ctx context.Context, date time.Time) (*models.Tariff, error) {
	query := `SELECT id, value, effective_date FROM tariff WHERE effective_date <= $1 ORDER BY effective_date DESC, id DESC LIMIT 1`
	return r.getOne(ctx, query, date)
}

func (r *tariffRepo) getOne(ctx context.Context, query string, args ...any) (*models.Tariff, error) {
	var t models.Tariff
	err := r.db.QueryRow(ctx, query, args...).Scan(&t.ID, &t.Value, &t.EffectiveDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get tariff", logger.Error(err))
		return nil, err
	}
	return &t, nil
}
