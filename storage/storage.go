package storage

import (
	"context"
	"encoding/json"
	"time"

	"plotbot/pkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type IStorage interface {
	User() IUserStorage
	Reading() IReadingStorage
	Payment() IPaymentStorage
	Tariff() ITariffStorage
	Registration() IRegistrationStorage
	BotAction() IBotActionStorage
	Notification() INotificationStorage
	Close()
	GetPool() *pgxpool.Pool
}

// Getters return nil, nil when the row does not exist.

type IUserStorage interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByViberID(ctx context.Context, viberID string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	GetUnlinkedByPlotAndPhone(ctx context.Context, plot, phone string) (*models.User, error)
	// LinkViber sets viber_id only while it is still NULL. Returns false when
	// another identity got there first.
	LinkViber(ctx context.Context, userID int64, viberID string, details json.RawMessage) (bool, error)
	UnlinkViber(ctx context.Context, userID int64) error
	SetNotifications(ctx context.Context, userID int64, enabled bool) error
	SetReminderDay(ctx context.Context, userID int64, day int) error
	GetDueForReminder(ctx context.Context, day int) ([]*models.User, error)
}

type IReadingStorage interface {
	GetLast(ctx context.Context, userID int64, limit int) ([]*models.Reading, error)
	ExistsBetween(ctx context.Context, userID int64, from, to time.Time) (bool, error)
}

type IPaymentStorage interface {
	// GetLatest joins the tariff in effect on the payment date.
	GetLatest(ctx context.Context, userID int64) (*models.Payment, error)
}

type ITariffStorage interface {
	GetLatest(ctx context.Context) (*models.Tariff, error)
	GetEffectiveAt(ctx context.Context, date time.Time) (*models.Tariff, error)
}

type IRegistrationStorage interface {
	Get(ctx context.Context, viberID string) (*models.PendingRegistration, error)
	Upsert(ctx context.Context, viberID, phone string) error
	Delete(ctx context.Context, viberID string) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type IBotActionStorage interface {
	Create(ctx context.Context, viberID, actionType, actionData string) error
}

type INotificationStorage interface {
	Create(ctx context.Context, n *models.Notification) error
	// ExistsSince reports whether a notification of kind was recorded for the
	// user at or after since, delivered or not.
	ExistsSince(ctx context.Context, userID int64, kind string, since time.Time) (bool, error)
}

// IGuard protects webhook processing: FirstSeen drops gateway redeliveries,
// Lock serializes messages of one identity across instances.
type IGuard interface {
	FirstSeen(ctx context.Context, token string, ttl time.Duration) (bool, error)
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
	Close() error
}
