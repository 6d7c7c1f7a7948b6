package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"plotbot/pkg/logger"
	"plotbot/storage"
)

type botActionRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewBotActionRepo(db *pgxpool.Pool, log logger.ILogger) storage.IBotActionStorage {
	return &botActionRepo{db: db, log: log}
}

func (r *botActionRepo) Create(ctx context.Context, viberID, actionType, actionData string) error {
	query := `INSERT INTO bot_actions (viber_id, action_type, action_data) VALUES ($1, $2, $3)`
	_, err := r.db.Exec(ctx, query, viberID, actionType, actionData)
	if err != nil {
		r.log.Error("failed to write bot action", logger.String("action", actionType), logger.Error(err))
	}
	return err
}
