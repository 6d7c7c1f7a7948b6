package service

import (
	"github.com/shopspring/decimal"

	"plotbot/config"
	"plotbot/pkg/alert"
	"plotbot/pkg/logger"
	"plotbot/storage"
)

var fallbackTariff = decimal.RequireFromString("4.75")

type IServiceManager interface {
	User() UserService
	Conversation() ConversationService
	Notify() NotifyService
	Reminder() *Reminder
}

type service struct {
	userService         UserService
	conversationService ConversationService
	notifyService       NotifyService
	reminder            *Reminder
}

func New(cfg config.Config, stg storage.IStorage, gw Gateway, alerts alert.Notifier, log logger.ILogger) IServiceManager {
	tariff, err := decimal.NewFromString(cfg.DefaultTariff)
	if err != nil {
		log.Warning("invalid DEFAULT_TARIFF, using built-in fallback", logger.String("value", cfg.DefaultTariff))
		tariff = fallbackTariff
	}

	ledger := NewLedger(stg, tariff)
	users := NewUserService(stg, log)
	notify := NewNotifyService(stg, users, ledger, gw, log)

	conversation := NewConversationService(stg, users, ledger, gw, ConversationOptions{
		CountryCode:     cfg.PhoneCountryCode,
		RegistrationTTL: cfg.RegistrationTTL,
		Requisites:      cfg.Requisites,
	}, log)

	reminder := NewReminder(stg, ledger, notify, alerts, ReminderOptions{
		Location:        cfg.Location(),
		Hour:            cfg.ReminderHour,
		PollInterval:    cfg.ReminderPollInterval,
		RegistrationTTL: cfg.RegistrationTTL,
	}, log)

	return &service{
		userService:         users,
		conversationService: conversation,
		notifyService:       notify,
		reminder:            reminder,
	}
}

func (s *service) User() UserService {
	return s.userService
}

func (s *service) Conversation() ConversationService {
	return s.conversationService
}

func (s *service) Notify() NotifyService {
	return s.notifyService
}

func (s *service) Reminder() *Reminder {
	return s.reminder
}
