package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"plotbot/pkg/logger"
	"plotbot/pkg/models"
	"plotbot/storage"
)

type readingRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewReadingRepo(db *pgxpool.Pool, log logger.ILogger) storage.IReadingStorage {
	return &readingRepo{db: db, log: log}
}

func (r *readingRepo) GetLast(ctx context.Context, userID int64, limit int) ([]*models.Reading, error) {
	query := `SELECT id, user_id, reading_date, value FROM readings WHERE user_id = $1 ORDER BY reading_date DESC, id DESC LIMIT $2`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		r.log.Error("failed to get readings", logger.Int64("user_id", userID), logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var readings []*models.Reading
	for rows.Next() {
		var rd models.Reading
		if err := rows.Scan(&rd.ID, &rd.UserID, &rd.ReadingDate, &rd.Value); err != nil {
			return nil, err
		}
		readings = append(readings, &rd)
	}
	return readings, rows.Err()
}

func (r *readingRepo) ExistsBetween(ctx context.Context, userID int64, from, to time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM readings WHERE user_id = $1 AND reading_date >= $2 AND reading_date < $3)`
	err := r.db.QueryRow(ctx, query, userID, from, to).Scan(&exists)
	return exists, err
}
