package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"plotbot/pkg/logger"
	"plotbot/pkg/viber"
	"plotbot/service"
)

const maxWebhookBody = 1 << 20

type readingRequest struct {
	UserID      int64            `json:"user_id"`
	ReadingDate string           `json:"reading_date"`
	Value       *decimal.Decimal `json:"value"`
}

// Tariff is optional: absent or zero means the tariff in effect on PaymentDate.
type paymentRequest struct {
	UserID      int64            `json:"user_id"`
	PaymentDate string           `json:"payment_date"`
	PaidReading *decimal.Decimal `json:"paid_reading"`
	Tariff      *decimal.Decimal `json:"tariff"`
}

func (b *Bot) Router() *gin.Engine {
	if b.Cfg.LoggerLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(Recovery(b.Log), RequestID(), RequestLogger(b.Log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestIDHeader}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/viber/webhook", b.webhook)

	internal := r.Group("/", BearerToken(b.Cfg.NotifyToken))
	{
		internal.POST("/notify-reading", b.notifyReading)
		internal.POST("/notify-payment", b.notifyPayment)
	}

	return r
}

// RunServer blocks until ctx is cancelled, then shuts the server down.
func (b *Bot) RunServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", b.Cfg.AppPort),
		Handler:           b.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		b.Log.Info("HTTP server listening", logger.Int("port", b.Cfg.AppPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (b *Bot) webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		b.Log.Warning("failed to read webhook body", logger.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	if b.Cfg.ViberVerifySignature && !viber.VerifySignature(b.Cfg.ViberAuthToken, body, c.GetHeader(viber.SignatureHeader)) {
		b.Log.Warning("webhook signature mismatch", logger.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	var ev viber.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		b.Log.Warning("malformed webhook body", logger.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), eventBudget)
	defer cancel()
	if welcome := b.HandleEvent(ctx, &ev); welcome != nil {
		c.JSON(http.StatusOK, welcome)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (b *Bot) notifyReading(c *gin.Context) {
	var req readingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body", "details": err.Error()})
		return
	}
	date, err := parseDate(req.ReadingDate)
	if req.UserID == 0 || err != nil || req.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, reading_date and value are required"})
		return
	}

	res := b.Svc.Notify().Reading(c.Request.Context(), service.ReadingNotice{
		UserID:      req.UserID,
		ReadingDate: date,
		Value:       *req.Value,
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok", "result": res})
}

func (b *Bot) notifyPayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body", "details": err.Error()})
		return
	}
	date, err := parseDate(req.PaymentDate)
	if req.UserID == 0 || err != nil || req.PaidReading == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, payment_date and paid_reading are required"})
		return
	}

	notice := service.PaymentNotice{
		UserID:      req.UserID,
		PaymentDate: date,
		PaidReading: *req.PaidReading,
	}
	if req.Tariff != nil {
		notice.Tariff = *req.Tariff
	}
	res := b.Svc.Notify().Payment(c.Request.Context(), notice)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "result": res})
}

// parseDate accepts a plain date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
