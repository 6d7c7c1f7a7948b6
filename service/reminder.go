package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"plotbot/pkg/alert"
	"plotbot/pkg/logger"
	"plotbot/pkg/models"
	"plotbot/storage"
)

type ReminderOptions struct {
	Location        *time.Location
	Hour            int
	PollInterval    time.Duration
	RegistrationTTL time.Duration
}

type BatchSummary struct {
	Day     time.Time
	Due     int
	Sent    int
	Failed  int
	Skipped int
	Purged  int64
}

func (b BatchSummary) String() string {
	return fmt.Sprintf("Напоминания %s: к отправке %d, отправлено %d, ошибок %d, пропущено %d; удалено незавершённых регистраций: %d",
		b.Day.Format(dateLayout), b.Due, b.Sent, b.Failed, b.Skipped, b.Purged)
}

// Reminder polls coarsely and runs the batch once per calendar day, at the
// first tick at or after the configured hour.
type Reminder struct {
	stg    storage.IStorage
	ledger *Ledger
	notify NotifyService
	alerts alert.Notifier
	log    logger.ILogger
	opts   ReminderOptions
	now    func() time.Time

	mu      sync.Mutex
	lastRun string
}

func NewReminder(stg storage.IStorage, ledger *Ledger, notify NotifyService, alerts alert.Notifier, opts ReminderOptions, log logger.ILogger) *Reminder {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if alerts == nil {
		alerts = alert.Nop{}
	}
	return &Reminder{
		stg:    stg,
		ledger: ledger,
		notify: notify,
		alerts: alerts,
		log:    log,
		opts:   opts,
		now:    time.Now,
	}
}

func (r *Reminder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	r.log.Info("reminder scheduler started", logger.Duration("poll", r.opts.PollInterval), logger.Int("hour", r.opts.Hour))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs the batch if today's run is due and has not happened yet.
// Reports whether a batch ran.
func (r *Reminder) Tick(ctx context.Context) bool {
	now := r.now().In(r.opts.Location)
	if now.Hour() < r.opts.Hour {
		return false
	}

	key := now.Format("2006-01-02")
	r.mu.Lock()
	if r.lastRun == key {
		r.mu.Unlock()
		return false
	}
	r.lastRun = key
	r.mu.Unlock()

	summary := r.RunBatch(ctx, now)
	r.log.Info("reminder batch finished",
		logger.Int("due", summary.Due),
		logger.Int("sent", summary.Sent),
		logger.Int("failed", summary.Failed),
		logger.Int("skipped", summary.Skipped),
		logger.Int64("purged", summary.Purged),
	)
	if summary.Due > 0 || summary.Purged > 0 {
		r.alerts.Notify(summary.String())
	}
	return true
}

// RunBatch never stops on a single user's failure. Users already reminded
// since the start of today are skipped, so a restart after the configured
// hour does not send twice.
func (r *Reminder) RunBatch(ctx context.Context, today time.Time) BatchSummary {
	summary := BatchSummary{Day: today}
	summary.Purged = r.purgeExpired(ctx, today)

	users, err := r.stg.User().GetDueForReminder(ctx, today.Day())
	if err != nil {
		r.log.Error("failed to load reminder recipients", logger.Error(err))
		return summary
	}
	summary.Due = len(users)

	month := today.Format(monthLayout)
	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	for _, u := range users {
		reminded, err := r.stg.Notification().ExistsSince(ctx, u.ID, models.KindReminder, dayStart)
		if err != nil {
			r.log.Error("reminder history check failed", logger.Int64("user_id", u.ID), logger.Error(err))
			summary.Failed++
			continue
		}
		if reminded {
			summary.Skipped++
			continue
		}

		submitted, err := r.ledger.HasReadingInMonth(ctx, u.ID, today)
		if err != nil {
			r.log.Error("reading check failed", logger.Int64("user_id", u.ID), logger.Error(err))
			summary.Failed++
			continue
		}
		if submitted {
			summary.Skipped++
			continue
		}

		res := r.notify.Deliver(ctx, u, models.KindReminder, fmt.Sprintf(messages["remind"], month, u.PlotNumber))
		switch res.Outcome {
		case OutcomeSent:
			summary.Sent++
		case OutcomeFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}
	return summary
}

func (r *Reminder) purgeExpired(ctx context.Context, now time.Time) int64 {
	if r.opts.RegistrationTTL <= 0 {
		return 0
	}
	n, err := r.stg.Registration().DeleteOlderThan(ctx, now.Add(-r.opts.RegistrationTTL))
	if err != nil {
		r.log.Warning("failed to purge expired registrations", logger.Error(err))
		return 0
	}
	return n
}
