package bot

import (
	"context"
	"time"

	"plotbot/config"
	"plotbot/pkg/logger"
	"plotbot/pkg/models"
	"plotbot/pkg/viber"
	"plotbot/service"
	"plotbot/storage"
)

const (
	dedupTTL    = 24 * time.Hour
	senderLock  = 10 * time.Second
	eventBudget = 15 * time.Second
)

type Bot struct {
	Cfg   *config.Config
	Svc   service.IServiceManager
	Gw    service.Gateway
	Guard storage.IGuard
	Log   logger.ILogger
}

func New(cfg *config.Config, svc service.IServiceManager, gw service.Gateway, guard storage.IGuard, log logger.ILogger) *Bot {
	return &Bot{
		Cfg:   cfg,
		Svc:   svc,
		Gw:    gw,
		Guard: guard,
		Log:   log,
	}
}

// HandleEvent processes one webhook event. Errors are logged, never returned;
// the webhook answers 200 regardless. For conversation_started it returns the
// welcome message to put in the callback response, otherwise nil.
func (b *Bot) HandleEvent(ctx context.Context, ev *viber.Event) *viber.WelcomeMessage {
	id := ev.Identity()

	switch ev.Event {
	case viber.EventMessage:
		b.handleMessage(ctx, ev)
	case viber.EventSubscribed:
		b.Svc.Conversation().Audit(ctx, id, models.ActionSubscribed, senderName(ev))
		b.send(ctx, id, b.Svc.Conversation().Greet(ctx, id))
	case viber.EventConversationStarted:
		b.Svc.Conversation().Audit(ctx, id, models.ActionConversationStarted, senderName(ev))
		r := b.Svc.Conversation().Greet(ctx, id)
		if r.Text != "" {
			return viber.NewWelcome(b.Cfg.ViberSenderName, r.Text, r.Keyboard)
		}
	case viber.EventUnsubscribed:
		b.handleUnsubscribed(ctx, id)
	case viber.EventDelivered, viber.EventSeen, viber.EventFailed:
		b.Log.Debug("viber delivery status", logger.String("event", ev.Event), logger.String("viber_id", id))
	case viber.EventWebhook:
		b.Log.Info("viber webhook confirmed")
	default:
		b.Log.Debug("unhandled viber event", logger.String("event", ev.Event))
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, ev *viber.Event) {
	id := ev.Identity()
	if id == "" {
		b.Log.Warning("message without sender ignored")
		return
	}

	token := ev.MessageToken.String()
	first, err := b.Guard.FirstSeen(ctx, token, dedupTTL)
	if err != nil {
		b.Log.Warning("dedup check failed, processing anyway", logger.Error(err))
	}
	if !first {
		b.Log.Info("duplicate message dropped", logger.String("viber_id", id), logger.String("token", token))
		return
	}

	unlock, err := b.Guard.Lock(ctx, id, senderLock)
	if err != nil {
		b.Log.Warning("sender lock not acquired, processing anyway", logger.String("viber_id", id), logger.Error(err))
	} else {
		defer unlock()
	}

	if ev.Message == nil || ev.Message.Type != viber.MessageTypeText {
		msgType := ""
		if ev.Message != nil {
			msgType = ev.Message.Type
		}
		b.Svc.Conversation().Audit(ctx, id, models.ActionMessage, "["+msgType+"]")
		b.send(ctx, id, service.TextOnlyReply())
		return
	}

	b.send(ctx, id, b.Svc.Conversation().HandleText(ctx, id, ev.Message.Text))
}

func (b *Bot) handleUnsubscribed(ctx context.Context, id string) {
	data := ""
	user, err := b.Svc.User().GetByViber(ctx, id)
	if err != nil {
		b.Log.Warning("unsubscribed user lookup failed", logger.Error(err))
	}
	if user != nil {
		data = user.PlotNumber
	}
	b.Svc.Conversation().Audit(ctx, id, models.ActionUnsubscribed, data)
}

func (b *Bot) send(ctx context.Context, receiver string, r service.Reply) {
	if r.Text == "" {
		return
	}
	if err := b.Gw.SendText(ctx, receiver, r.Text, r.Keyboard); err != nil {
		b.Log.Warning("viber send failed", logger.String("viber_id", receiver), logger.Error(err))
	}
}

func senderName(ev *viber.Event) string {
	switch {
	case ev.User != nil:
		return ev.User.Name
	case ev.Sender != nil:
		return ev.Sender.Name
	default:
		return ""
	}
}
