package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"plotbot/pkg/logger"
	"plotbot/pkg/models"
	"plotbot/storage"
)

type notificationRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewNotificationRepo(db *pgxpool.Pool, log logger.ILogger) storage.INotificationStorage {
	return &notificationRepo{db: db, log: log}
}

func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	via := n.Via
	if via == "" {
		via = models.ViaViber
	}
	query := `
		INSERT INTO notifications (user_id, message, via, kind, success, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, n.UserID, n.Message, via, n.Kind, n.Success, n.Error).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		r.log.Error("failed to write notification", logger.Int64("user_id", n.UserID), logger.Error(err))
	}
	return err
}

func (r *notificationRepo) ExistsSince(ctx context.Context, userID int64, kind string, since time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM notifications WHERE user_id = $1 AND kind = $2 AND created_at >= $3)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, kind, since).Scan(&exists); err != nil {
		r.log.Error("failed to check notifications", logger.Int64("user_id", userID), logger.Error(err))
		return false, err
	}
	return exists, nil
}
