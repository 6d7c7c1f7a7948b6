package bot

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plotbot/config"
	"plotbot/pkg/logger"
	"plotbot/pkg/models"
	"plotbot/pkg/viber"
	"plotbot/service"
	"plotbot/storage/memory"
)

const (
	testAuthToken   = "viber-secret"
	testNotifyToken = "notify-secret"
)

type audit struct {
	ViberID, Type, Data string
}

type stubConversation struct {
	mu     sync.Mutex
	texts  []string
	audits []audit
}

func (s *stubConversation) HandleText(_ context.Context, viberID, text string) service.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return service.Reply{Text: "echo: " + text}
}

func (s *stubConversation) Greet(context.Context, string) service.Reply {
	return service.Reply{Text: "welcome"}
}

func (s *stubConversation) State(context.Context, string) (service.State, error) {
	return service.StateUnlinked, nil
}

func (s *stubConversation) Audit(_ context.Context, viberID, actionType, actionData string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, audit{viberID, actionType, actionData})
}

type stubUsers struct {
	service.UserService
	byViber map[string]*models.User
}

func (s stubUsers) GetByViber(_ context.Context, viberID string) (*models.User, error) {
	return s.byViber[viberID], nil
}

type stubNotify struct {
	readings []service.ReadingNotice
	payments []service.PaymentNotice
}

func (s *stubNotify) Reading(_ context.Context, n service.ReadingNotice) service.Result {
	s.readings = append(s.readings, n)
	return service.Result{Outcome: service.OutcomeSent}
}

func (s *stubNotify) Payment(_ context.Context, n service.PaymentNotice) service.Result {
	s.payments = append(s.payments, n)
	return service.Result{Outcome: service.OutcomeSkipped, Reason: "notifications disabled"}
}

func (s *stubNotify) Deliver(context.Context, *models.User, string, string) service.Result {
	return service.Result{Outcome: service.OutcomeSent}
}

type stubServices struct {
	users  stubUsers
	conv   *stubConversation
	notify *stubNotify
}

func (s *stubServices) User() service.UserService                 { return s.users }
func (s *stubServices) Conversation() service.ConversationService { return s.conv }
func (s *stubServices) Notify() service.NotifyService             { return s.notify }
func (s *stubServices) Reminder() *service.Reminder               { return nil }

type recordingGateway struct {
	mu   sync.Mutex
	sent []string
}

func (g *recordingGateway) SendText(_ context.Context, receiver, text string, _ *viber.Keyboard) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, receiver+"|"+text)
	return nil
}

func (g *recordingGateway) UserDetails(context.Context, string) (json.RawMessage, error) {
	return nil, nil
}

type fixture struct {
	bot    *Bot
	router *gin.Engine
	svc    *stubServices
	gw     *recordingGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		LoggerLevel:          "debug",
		NotifyToken:          testNotifyToken,
		ViberSenderName:      "Электроучёт",
		ViberAuthToken:       testAuthToken,
		ViberVerifySignature: true,
	}
	svc := &stubServices{
		users: stubUsers{byViber: map[string]*models.User{
			"viber-a": {ID: 1, PlotNumber: "42"},
		}},
		conv:   &stubConversation{},
		notify: &stubNotify{},
	}
	gw := &recordingGateway{}
	b := New(cfg, svc, gw, memory.NewGuard(), logger.NewNop())
	return &fixture{bot: b, router: b.Router(), svc: svc, gw: gw}
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testAuthToken))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (f *fixture) postWebhook(t *testing.T, body string, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/viber/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(viber.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) postSigned(t *testing.T, body string) *httptest.ResponseRecorder {
	return f.postWebhook(t, body, sign([]byte(body)))
}

func statusOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	s, _ := out["status"].(string)
	return s
}

const textMessage = `{"event":"message","timestamp":1,"message_token":1001,
	"sender":{"id":"viber-a","name":"Ivan"},"message":{"type":"text","text":"инфо"}}`

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestWebhookTextMessage(t *testing.T) {
	f := newFixture(t)

	w := f.postSigned(t, textMessage)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", statusOf(t, w))

	assert.Equal(t, []string{"инфо"}, f.svc.conv.texts)
	assert.Equal(t, []string{"viber-a|echo: инфо"}, f.gw.sent)
}

func TestWebhookBadSignature(t *testing.T) {
	f := newFixture(t)

	w := f.postWebhook(t, textMessage, "deadbeef")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ignored", statusOf(t, w))

	w = f.postWebhook(t, textMessage, "")
	assert.Equal(t, "ignored", statusOf(t, w))

	assert.Empty(t, f.svc.conv.texts)
	assert.Empty(t, f.gw.sent)
}

func TestWebhookSignatureCheckDisabled(t *testing.T) {
	f := newFixture(t)
	f.bot.Cfg.ViberVerifySignature = false

	w := f.postWebhook(t, textMessage, "")
	assert.Equal(t, "ok", statusOf(t, w))
	assert.Len(t, f.svc.conv.texts, 1)
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	f := newFixture(t)

	f.postSigned(t, textMessage)
	w := f.postSigned(t, textMessage)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Len(t, f.svc.conv.texts, 1)
	assert.Len(t, f.gw.sent, 1)
}

func TestWebhookNonTextMessage(t *testing.T) {
	f := newFixture(t)

	body := `{"event":"message","message_token":2002,"sender":{"id":"viber-a"},"message":{"type":"picture"}}`
	w := f.postSigned(t, body)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Empty(t, f.svc.conv.texts)
	require.Len(t, f.gw.sent, 1)
	assert.Equal(t, "viber-a|"+service.TextOnlyReply().Text, f.gw.sent[0])
	require.Len(t, f.svc.conv.audits, 1)
	assert.Equal(t, "[picture]", f.svc.conv.audits[0].Data)
}

func TestWebhookMalformedBody(t *testing.T) {
	f := newFixture(t)

	w := f.postSigned(t, `{"event":`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.gw.sent)
}

func TestWebhookSubscriptionEvents(t *testing.T) {
	f := newFixture(t)

	f.postSigned(t, `{"event":"conversation_started","user":{"id":"viber-b","name":"Olga"}}`)
	f.postSigned(t, `{"event":"subscribed","user":{"id":"viber-c","name":"Petro"}}`)
	f.postSigned(t, `{"event":"unsubscribed","user_id":"viber-a"}`)
	f.postSigned(t, `{"event":"delivered","user_id":"viber-a","message_token":3003}`)

	// conversation_started is answered in the response body, not via send_message.
	assert.Equal(t, []string{"viber-c|welcome"}, f.gw.sent)
	assert.Equal(t, []audit{
		{"viber-b", models.ActionConversationStarted, "Olga"},
		{"viber-c", models.ActionSubscribed, "Petro"},
		{"viber-a", models.ActionUnsubscribed, "42"},
	}, f.svc.conv.audits)
}

func TestWebhookConversationStartedReturnsWelcome(t *testing.T) {
	f := newFixture(t)

	w := f.postSigned(t, `{"event":"conversation_started","user":{"id":"viber-b","name":"Olga"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var welcome viber.WelcomeMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &welcome))
	assert.Equal(t, viber.MessageTypeText, welcome.Type)
	assert.Equal(t, "welcome", welcome.Text)
	assert.Equal(t, "Электроучёт", welcome.Sender.Name)
	assert.Empty(t, f.gw.sent)
}

func postJSON(router *gin.Engine, path, token string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNotifyReadingEndpoint(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"user_id": 1, "reading_date": "2024-03-01", "value": "1234.5"}

	w := postJSON(f.router, "/notify-reading", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(f.router, "/notify-reading", testNotifyToken, body)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Status string         `json:"status"`
		Result service.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, service.OutcomeSent, out.Result.Outcome)

	require.Len(t, f.svc.notify.readings, 1)
	n := f.svc.notify.readings[0]
	assert.EqualValues(t, 1, n.UserID)
	assert.Equal(t, "2024-03-01", n.ReadingDate.Format("2006-01-02"))
	assert.Equal(t, "1234.5", n.Value.String())
}

func TestNotifyPaymentEndpoint(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{
		"user_id":      1,
		"payment_date": "2024-03-02T10:00:00Z",
		"paid_reading": 200,
		"tariff":       "4.32",
	}

	w := postJSON(f.router, "/notify-payment", testNotifyToken, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"skipped"`)

	require.Len(t, f.svc.notify.payments, 1)
	assert.Equal(t, "4.32", f.svc.notify.payments[0].Tariff.String())
	assert.Equal(t, "200", f.svc.notify.payments[0].PaidReading.String())
}

func TestNotifyEndpointValidation(t *testing.T) {
	f := newFixture(t)

	w := postJSON(f.router, "/notify-reading", testNotifyToken, map[string]any{"user_id": 1, "reading_date": "01.03.2024"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(f.router, "/notify-reading", testNotifyToken, map[string]any{"user_id": 1, "reading_date": "2024-03-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "value")

	w = postJSON(f.router, "/notify-payment", testNotifyToken, map[string]any{"payment_date": "2024-03-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(f.router, "/notify-payment", testNotifyToken, map[string]any{"user_id": 1, "payment_date": "2024-03-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "paid_reading")

	req := httptest.NewRequest(http.MethodPost, "/notify-reading", bytes.NewBufferString("not json"))
	req.Header.Set("Authorization", "Bearer "+testNotifyToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, f.svc.notify.readings)
	assert.Empty(t, f.svc.notify.payments)
}

func TestNotifyTokenDisabled(t *testing.T) {
	f := newFixture(t)
	f.bot.Cfg.NotifyToken = ""
	router := f.bot.Router()

	w := postJSON(router, "/notify-reading", "", map[string]any{"user_id": 1, "reading_date": "2024-03-01", "value": 1})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNotifyPaymentWithoutTariff(t *testing.T) {
	f := newFixture(t)

	w := postJSON(f.router, "/notify-payment", testNotifyToken, map[string]any{
		"user_id":      1,
		"payment_date": "2024-03-02",
		"paid_reading": "150",
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, f.svc.notify.payments, 1)
	assert.True(t, f.svc.notify.payments[0].Tariff.IsZero())
}

func TestBearerTokenRequiresScheme(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"user_id": 1, "reading_date": "2024-03-01", "value": 1}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "bare token", header: testNotifyToken, want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "lowercase scheme", header: "bearer " + testNotifyToken, want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + testNotifyToken, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := json.Marshal(body)
			req := httptest.NewRequest(http.MethodPost, "/notify-reading", bytes.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
