package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"plotbot/pkg/logger"
	"plotbot/pkg/models"
	"plotbot/storage"
)

const userColumns = `id, plot_number, full_name, phone, viber_id, notifications_enabled, reminder_day, viber_details, created_at, updated_at`

type userRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewUserRepo(db *pgxpool.Pool, log logger.ILogger) storage.IUserStorage {
	return &userRepo{db: db, log: log}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u       models.User
		day     *int16
		details []byte
	)
	err := row.Scan(
		&u.ID, &u.PlotNumber, &u.FullName, &u.Phone, &u.ViberID, &u.NotificationsEnabled, &day, &details, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if day != nil {
		d := int(*day)
		u.ReminderDay = &d
	}
	if len(details) > 0 {
		u.ViberDetails = json.RawMessage(details)
	}
	return &u, nil
}

func (r *userRepo) getOne(ctx context.Context, op, query string, args ...any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to "+op, logger.Error(err))
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, "get user by id", query, id)
}

func (r *userRepo) GetByViberID(ctx context.Context, viberID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE viber_id = $1`
	return r.getOne(ctx, "get user by viber id", query, viberID)
}

// GetByPhone prefers an already linked row so the "already linked" check is
// not masked by a duplicate unlinked entry with the same phone.
func (r *userRepo) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1 ORDER BY (viber_id IS NULL), id LIMIT 1`
	return r.getOne(ctx, "get user by phone", query, phone)
}

func (r *userRepo) GetUnlinkedByPlotAndPhone(ctx context.Context, plot, phone string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE plot_number = $1 AND phone = $2 AND viber_id IS NULL`
	return r.getOne(ctx, "get user by plot and phone", query, plot, phone)
}

func (r *userRepo) LinkViber(ctx context.Context, userID int64, viberID string, details json.RawMessage) (bool, error) {
	var detailsArg any
	if len(details) > 0 {
		detailsArg = []byte(details)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET viber_id = $1, viber_details = $2, updated_at = NOW()
		WHERE id = $3 AND viber_id IS NULL`,
		viberID, detailsArg, userID,
	)
	if err != nil {
		r.log.Error("failed to link viber", logger.Int64("user_id", userID), logger.Error(err))
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *userRepo) UnlinkViber(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, "UPDATE users SET viber_id = NULL, viber_details = NULL, updated_at = NOW() WHERE id = $1", userID)
	return err
}

func (r *userRepo) SetNotifications(ctx context.Context, userID int64, enabled bool) error {
	_, err := r.db.Exec(ctx, "UPDATE users SET notifications_enabled = $1, updated_at = NOW() WHERE id = $2", enabled, userID)
	return err
}

func (r *userRepo) SetReminderDay(ctx context.Context, userID int64, day int) error {
	_, err := r.db.Exec(ctx, "UPDATE users SET reminder_day = $1, updated_at = NOW() WHERE id = $2", day, userID)
	return err
}

func (r *userRepo) GetDueForReminder(ctx context.Context, day int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE reminder_day = $1 AND viber_id IS NOT NULL AND notifications_enabled
		ORDER BY plot_number`
	rows, err := r.db.Query(ctx, query, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
