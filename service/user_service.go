package service

import (
	"context"
	"encoding/json"
	"errors"

	"plotbot/pkg/logger"
	"plotbot/pkg/models"
	"plotbot/storage"
)

var ErrInvalidReminderDay = errors.New("reminder day must be between 1 and 28")

const (
	minReminderDay = 1
	maxReminderDay = 28
)

// UserService is the user directory as seen by the bot.
type UserService interface {
	GetByViber(ctx context.Context, viberID string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Link(ctx context.Context, userID int64, viberID string, details json.RawMessage) (bool, error)
	Unlink(ctx context.Context, userID int64) error
	ToggleNotifications(ctx context.Context, user *models.User) (bool, error)
	SetReminderDay(ctx context.Context, userID int64, day int) error
}

type userService struct {
	stg storage.IUserStorage
	log logger.ILogger
}

func NewUserService(stg storage.IStorage, log logger.ILogger) UserService {
	return &userService{
		stg: stg.User(),
		log: log,
	}
}

func (s *userService) GetByViber(ctx context.Context, viberID string) (*models.User, error) {
	return s.stg.GetByViberID(ctx, viberID)
}

func (s *userService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.stg.GetByID(ctx, id)
}

func (s *userService) Link(ctx context.Context, userID int64, viberID string, details json.RawMessage) (bool, error) {
	return s.stg.LinkViber(ctx, userID, viberID, details)
}

func (s *userService) Unlink(ctx context.Context, userID int64) error {
	return s.stg.UnlinkViber(ctx, userID)
}

func (s *userService) ToggleNotifications(ctx context.Context, user *models.User) (bool, error) {
	enabled := !user.NotificationsEnabled
	if err := s.stg.SetNotifications(ctx, user.ID, enabled); err != nil {
		return user.NotificationsEnabled, err
	}
	user.NotificationsEnabled = enabled
	s.log.Info("notifications toggled", logger.Int64("user_id", user.ID), logger.Bool("enabled", enabled))
	return enabled, nil
}

func (s *userService) SetReminderDay(ctx context.Context, userID int64, day int) error {
	if !validReminderDay(day) {
		return ErrInvalidReminderDay
	}
	return s.stg.SetReminderDay(ctx, userID, day)
}

func validReminderDay(day int) bool {
	return day >= minReminderDay && day <= maxReminderDay
}
