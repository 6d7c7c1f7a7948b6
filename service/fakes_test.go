package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"plotbot/pkg/logger"
	"plotbot/pkg/models"
	"plotbot/pkg/viber"
	"plotbot/storage"
)

// fakeStore is an in-memory storage.IStorage shared by the service tests.
type fakeStore struct {
	mu            sync.Mutex
	users         map[int64]*models.User
	readings      []*models.Reading
	payments      []*models.Payment
	tariffs       []*models.Tariff
	pending       map[string]*models.PendingRegistration
	actions       []models.BotAction
	notifications []models.Notification
	now           func() time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[int64]*models.User),
		pending: make(map[string]*models.PendingRegistration),
		now:     time.Now,
	}
}

func (s *fakeStore) User() storage.IUserStorage                 { return fakeUsers{s} }
func (s *fakeStore) Reading() storage.IReadingStorage           { return fakeReadings{s} }
func (s *fakeStore) Payment() storage.IPaymentStorage           { return fakePayments{s} }
func (s *fakeStore) Tariff() storage.ITariffStorage             { return fakeTariffs{s} }
func (s *fakeStore) Registration() storage.IRegistrationStorage { return fakeRegistrations{s} }
func (s *fakeStore) BotAction() storage.IBotActionStorage       { return fakeActions{s} }
func (s *fakeStore) Notification() storage.INotificationStorage { return fakeNotifications{s} }
func (s *fakeStore) Close()                                     {}
func (s *fakeStore) GetPool() *pgxpool.Pool                     { return nil }

func (s *fakeStore) addUser(u *models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = int64(len(s.users) + 1)
	}
	s.users[u.ID] = u
	return u
}

func (s *fakeStore) addReading(userID int64, date time.Time, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, &models.Reading{
		ID:          int64(len(s.readings) + 1),
		UserID:      userID,
		ReadingDate: date,
		Value:       decimal.RequireFromString(value),
	})
}

func (s *fakeStore) addTariff(date time.Time, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tariffs = append(s.tariffs, &models.Tariff{
		ID:            int64(len(s.tariffs) + 1),
		Value:         decimal.RequireFromString(value),
		EffectiveDate: date,
	})
}

// user returns a snapshot of the stored row.
func (s *fakeStore) user(id int64) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.users[id])
}

func (s *fakeStore) actionTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.actions))
	for _, a := range s.actions {
		out = append(out, a.ActionType)
	}
	return out
}

func (s *fakeStore) sentNotifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.notifications...)
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

type fakeUsers struct{ s *fakeStore }

func (r fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (r fakeUsers) find(match func(*models.User) bool) *models.User {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]int64, 0, len(r.s.users))
	for id := range r.s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if u := r.s.users[id]; match(u) {
			return copyUser(u)
		}
	}
	return nil
}

func (r fakeUsers) GetByViberID(_ context.Context, viberID string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ViberID != nil && *u.ViberID == viberID }), nil
}

// GetByPhone returns a linked row first, same ordering as the SQL query.
func (r fakeUsers) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	if u := r.find(func(u *models.User) bool { return u.Phone != nil && *u.Phone == phone && u.Linked() }); u != nil {
		return u, nil
	}
	return r.find(func(u *models.User) bool { return u.Phone != nil && *u.Phone == phone }), nil
}

func (r fakeUsers) GetUnlinkedByPlotAndPhone(_ context.Context, plot, phone string) (*models.User, error) {
	return r.find(func(u *models.User) bool {
		return u.PlotNumber == plot && u.Phone != nil && *u.Phone == phone && !u.Linked()
	}), nil
}

func (r fakeUsers) LinkViber(_ context.Context, userID int64, viberID string, details json.RawMessage) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok || u.Linked() {
		return false, nil
	}
	for _, other := range r.s.users {
		if other.ViberID != nil && *other.ViberID == viberID {
			return false, nil
		}
	}
	u.ViberID = &viberID
	u.ViberDetails = details
	return true, nil
}

func (r fakeUsers) UnlinkViber(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[userID]; ok {
		u.ViberID = nil
		u.ViberDetails = nil
	}
	return nil
}

func (r fakeUsers) SetNotifications(_ context.Context, userID int64, enabled bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[userID]; ok {
		u.NotificationsEnabled = enabled
	}
	return nil
}

func (r fakeUsers) SetReminderDay(_ context.Context, userID int64, day int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[userID]; ok {
		u.ReminderDay = &day
	}
	return nil
}

func (r fakeUsers) GetDueForReminder(_ context.Context, day int) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.User
	for _, u := range r.s.users {
		if u.Linked() && u.NotificationsEnabled && u.ReminderDay != nil && *u.ReminderDay == day {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeReadings struct{ s *fakeStore }

func (r fakeReadings) GetLast(_ context.Context, userID int64, limit int) ([]*models.Reading, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Reading
	for _, rd := range r.s.readings {
		if rd.UserID == userID {
			out = append(out, rd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReadingDate.After(out[j].ReadingDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakeReadings) ExistsBetween(_ context.Context, userID int64, from, to time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rd := range r.s.readings {
		if rd.UserID == userID && !rd.ReadingDate.Before(from) && rd.ReadingDate.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

type fakePayments struct{ s *fakeStore }

func (r fakePayments) GetLatest(_ context.Context, userID int64) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.Payment
	for _, p := range r.s.payments {
		if p.UserID == userID && (latest == nil || p.PaymentDate.After(latest.PaymentDate)) {
			latest = p
		}
	}
	return latest, nil
}

type fakeTariffs struct{ s *fakeStore }

func (r fakeTariffs) GetLatest(ctx context.Context) (*models.Tariff, error) {
	return r.GetEffectiveAt(ctx, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
}

func (r fakeTariffs) GetEffectiveAt(_ context.Context, date time.Time) (*models.Tariff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *models.Tariff
	for _, t := range r.s.tariffs {
		if !t.EffectiveDate.After(date) && (best == nil || t.EffectiveDate.After(best.EffectiveDate)) {
			best = t
		}
	}
	return best, nil
}

type fakeRegistrations struct{ s *fakeStore }

func (r fakeRegistrations) Get(_ context.Context, viberID string) (*models.PendingRegistration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.pending[viberID]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (r fakeRegistrations) Upsert(_ context.Context, viberID, phone string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.pending[viberID] = &models.PendingRegistration{ViberID: viberID, Phone: phone, CreatedAt: r.s.now()}
	return nil
}

func (r fakeRegistrations) Delete(_ context.Context, viberID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.pending, viberID)
	return nil
}

func (r fakeRegistrations) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.pending {
		if p.CreatedAt.Before(before) {
			delete(r.s.pending, id)
			n++
		}
	}
	return n, nil
}

type fakeActions struct{ s *fakeStore }

func (r fakeActions) Create(_ context.Context, viberID, actionType, actionData string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.actions = append(r.s.actions, models.BotAction{
		ID:         int64(len(r.s.actions) + 1),
		ViberID:    viberID,
		ActionType: actionType,
		ActionData: actionData,
	})
	return nil
}

type fakeNotifications struct{ s *fakeStore }

func (r fakeNotifications) Create(_ context.Context, n *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = int64(len(r.s.notifications) + 1)
	n.CreatedAt = r.s.now()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r fakeNotifications) ExistsSince(_ context.Context, userID int64, kind string, since time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications {
		if n.UserID == userID && n.Kind == kind && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type sentMessage struct {
	Receiver string
	Text     string
	Keyboard *viber.Keyboard
}

// fakeGateway records outbound messages. Receivers listed in failFor get an error.
type fakeGateway struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]bool
	details json.RawMessage
}

func (g *fakeGateway) SendText(_ context.Context, receiver, text string, kb *viber.Keyboard) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFor[receiver] {
		return errors.New("receiver not subscribed")
	}
	g.sent = append(g.sent, sentMessage{Receiver: receiver, Text: text, Keyboard: kb})
	return nil
}

func (g *fakeGateway) UserDetails(_ context.Context, _ string) (json.RawMessage, error) {
	if g.details == nil {
		return nil, errors.New("details unavailable")
	}
	return g.details, nil
}

func (g *fakeGateway) messages() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMessage(nil), g.sent...)
}

type recordingAlerts struct {
	mu    sync.Mutex
	texts []string
}

func (a *recordingAlerts) Notify(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts = append(a.texts, text)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// harness wires the services over a fakeStore the way service.New does.
type harness struct {
	stg    *fakeStore
	gw     *fakeGateway
	alerts *recordingAlerts
	conv   *conversation
	notify NotifyService
	remind *Reminder
	clock  time.Time
}

func newHarness() *harness {
	h := &harness{
		stg:    newFakeStore(),
		gw:     &fakeGateway{failFor: map[string]bool{}},
		alerts: &recordingAlerts{},
		clock:  time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC),
	}
	h.stg.now = func() time.Time { return h.clock }

	log := logger.NewNop()
	ledger := NewLedger(h.stg, fallbackTariff)
	users := NewUserService(h.stg, log)
	h.notify = NewNotifyService(h.stg, users, ledger, h.gw, log)

	h.conv = NewConversationService(h.stg, users, ledger, h.gw, ConversationOptions{
		CountryCode:     "380",
		RegistrationTTL: 24 * time.Hour,
		Requisites:      "IBAN UA000000000000000000000000000",
	}, log).(*conversation)
	h.conv.now = func() time.Time { return h.clock }

	h.remind = NewReminder(h.stg, ledger, h.notify, h.alerts, ReminderOptions{
		Location:        time.UTC,
		Hour:            10,
		PollInterval:    time.Minute,
		RegistrationTTL: 24 * time.Hour,
	}, log)
	h.remind.now = func() time.Time { return h.clock }
	return h
}
