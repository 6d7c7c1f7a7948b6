package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"plotbot/pkg/logger"
	"plotbot/pkg/models"
	"plotbot/storage"
)

type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Result of a best-effort send. It is never turned into an error for the caller.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

type ReadingNotice struct {
	UserID      int64
	ReadingDate time.Time
	Value       decimal.Decimal
}

// PaymentNotice with a zero Tariff is priced at the tariff in effect on
// PaymentDate.
type PaymentNotice struct {
	UserID      int64
	PaymentDate time.Time
	PaidReading decimal.Decimal
	Tariff      decimal.Decimal
}

type NotifyService interface {
	Reading(ctx context.Context, n ReadingNotice) Result
	Payment(ctx context.Context, n PaymentNotice) Result
	Deliver(ctx context.Context, user *models.User, kind, text string) Result
}

type notifyService struct {
	stg    storage.IStorage
	users  UserService
	ledger *Ledger
	gw     Gateway
	log    logger.ILogger
}

func NewNotifyService(stg storage.IStorage, users UserService, ledger *Ledger, gw Gateway, log logger.ILogger) NotifyService {
	return &notifyService{stg: stg, users: users, ledger: ledger, gw: gw, log: log}
}

func (s *notifyService) Reading(ctx context.Context, n ReadingNotice) Result {
	user, res, ok := s.lookup(ctx, n.UserID)
	if !ok {
		return res
	}
	text := fmt.Sprintf(messages["notify_reading"], formatKWh(n.Value), n.ReadingDate.Format(dateLayout), user.PlotNumber)
	return s.Deliver(ctx, user, models.KindReading, text)
}

func (s *notifyService) Payment(ctx context.Context, n PaymentNotice) Result {
	user, res, ok := s.lookup(ctx, n.UserID)
	if !ok {
		return res
	}

	tariff := n.Tariff
	if tariff.IsZero() {
		var err error
		tariff, err = s.ledger.TariffAt(ctx, n.PaymentDate)
		if err != nil {
			s.log.Error("notify: tariff lookup failed", logger.Int64("user_id", n.UserID), logger.Error(err))
			return Result{Outcome: OutcomeFailed, Reason: "tariff lookup failed"}
		}
	}

	amount := n.PaidReading.Mul(tariff)
	text := fmt.Sprintf(messages["notify_payment"],
		n.PaymentDate.Format(dateLayout),
		formatKWh(n.PaidReading),
		formatMoney(tariff),
		formatMoney(amount),
		user.PlotNumber,
	)
	return s.Deliver(ctx, user, models.KindPayment, text)
}

func (s *notifyService) lookup(ctx context.Context, userID int64) (*models.User, Result, bool) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.log.Error("notify: user lookup failed", logger.Int64("user_id", userID), logger.Error(err))
		return nil, Result{Outcome: OutcomeFailed, Reason: "user lookup failed"}, false
	}
	if user == nil {
		return nil, Result{Outcome: OutcomeSkipped, Reason: "user not found"}, false
	}
	return user, Result{}, true
}

// Deliver sends text if the user is linked and opted in, and records the
// attempt in the notifications table.
func (s *notifyService) Deliver(ctx context.Context, user *models.User, kind, text string) Result {
	if !user.Linked() {
		return s.skip(user, "not linked")
	}
	if !user.NotificationsEnabled {
		return s.skip(user, "notifications disabled")
	}

	n := &models.Notification{UserID: user.ID, Message: text, Via: models.ViaViber, Kind: kind, Success: true}
	res := Result{Outcome: OutcomeSent}

	if err := s.gw.SendText(ctx, *user.ViberID, text, nil); err != nil {
		errText := err.Error()
		n.Success = false
		n.Error = &errText
		res = Result{Outcome: OutcomeFailed, Reason: errText}
		s.log.Warning("notification not delivered", logger.Int64("user_id", user.ID), logger.Error(err))
	}

	if err := s.stg.Notification().Create(ctx, n); err != nil {
		s.log.Warning("notification not recorded", logger.Int64("user_id", user.ID), logger.Error(err))
	}
	return res
}

func (s *notifyService) skip(user *models.User, reason string) Result {
	s.log.Debug("notification skipped", logger.Int64("user_id", user.ID), logger.String("reason", reason))
	return Result{Outcome: OutcomeSkipped, Reason: reason}
}
