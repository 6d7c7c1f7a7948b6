package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plotbot/pkg/logger"
	"plotbot/pkg/models"
	"plotbot/storage"
)

// State of a messaging identity, derived from the database on every message.
type State int

const (
	StateUnlinked State = iota
	StatePhonePending
	StateLinked
)

func (s State) String() string {
	switch s {
	case StatePhonePending:
		return "phone_pending"
	case StateLinked:
		return "linked"
	default:
		return "unlinked"
	}
}

var cancelWords = map[string]bool{
	"отмена": true,
	"cancel": true,
}

type ConversationService interface {
	HandleText(ctx context.Context, viberID, text string) Reply
	Greet(ctx context.Context, viberID string) Reply
	State(ctx context.Context, viberID string) (State, error)
	Audit(ctx context.Context, viberID, actionType, actionData string)
}

type ConversationOptions struct {
	CountryCode     string
	RegistrationTTL time.Duration
	Requisites      string
}

type conversation struct {
	stg      storage.IStorage
	users    UserService
	ledger   *Ledger
	gw       Gateway
	log      logger.ILogger
	opts     ConversationOptions
	now      func() time.Time
	commands map[Command]commandHandler
}

func NewConversationService(stg storage.IStorage, users UserService, ledger *Ledger, gw Gateway, opts ConversationOptions, log logger.ILogger) ConversationService {
	c := &conversation{
		stg:    stg,
		users:  users,
		ledger: ledger,
		gw:     gw,
		log:    log,
		opts:   opts,
		now:    time.Now,
	}
	c.commands = c.commandTable()
	return c
}

func (c *conversation) HandleText(ctx context.Context, viberID, text string) Reply {
	text = strings.TrimSpace(text)
	c.Audit(ctx, viberID, models.ActionMessage, text)

	log := c.log.With(logger.String("viber_id", viberID))
	state, user, pending, err := c.resolve(ctx, viberID)
	if err != nil {
		log.Error("failed to resolve conversation state", logger.Error(err))
		return reply("internal")
	}
	log.Debug("incoming text", logger.String("state", state.String()))

	switch state {
	case StateLinked:
		return c.dispatch(ctx, user, text)
	case StatePhonePending:
		return c.confirmPlot(ctx, viberID, pending, text)
	default:
		return c.submitPhone(ctx, viberID, text)
	}
}

func (c *conversation) Greet(ctx context.Context, viberID string) Reply {
	state, _, _, err := c.resolve(ctx, viberID)
	if err != nil {
		c.log.Error("failed to resolve conversation state", logger.String("viber_id", viberID), logger.Error(err))
		return reply("welcome")
	}
	switch state {
	case StateLinked:
		return menuReply(helpText)
	case StatePhonePending:
		return Reply{Text: messages["phone_ok"], Keyboard: cancelKeyboard()}
	default:
		return reply("welcome")
	}
}

func (c *conversation) State(ctx context.Context, viberID string) (State, error) {
	state, _, _, err := c.resolve(ctx, viberID)
	return state, err
}

// Audit writes a bot_actions row. Failures are logged and swallowed.
func (c *conversation) Audit(ctx context.Context, viberID, actionType, actionData string) {
	if err := c.stg.BotAction().Create(ctx, viberID, actionType, actionData); err != nil {
		c.log.Warning("bot action not recorded",
			logger.String("viber_id", viberID),
			logger.String("action", actionType),
			logger.Error(err),
		)
	}
}

func (c *conversation) resolve(ctx context.Context, viberID string) (State, *models.User, *models.PendingRegistration, error) {
	user, err := c.users.GetByViber(ctx, viberID)
	if err != nil {
		return StateUnlinked, nil, nil, err
	}
	if user != nil {
		return StateLinked, user, nil, nil
	}

	pending, err := c.stg.Registration().Get(ctx, viberID)
	if err != nil {
		return StateUnlinked, nil, nil, err
	}
	if pending == nil {
		return StateUnlinked, nil, nil, nil
	}
	if pending.Expired(c.now(), c.opts.RegistrationTTL) {
		c.log.Info("pending registration expired", logger.String("viber_id", viberID), logger.Time("created_at", pending.CreatedAt))
		if err := c.stg.Registration().Delete(ctx, viberID); err != nil {
			c.log.Warning("failed to delete expired registration", logger.Error(err))
		}
		return StateUnlinked, nil, nil, nil
	}
	return StatePhonePending, nil, pending, nil
}

func (c *conversation) submitPhone(ctx context.Context, viberID, text string) Reply {
	digits := NormalizePhone(text)
	if !ValidPhone(digits, c.opts.CountryCode) {
		return reply("phone_format")
	}

	user, err := c.stg.User().GetByPhone(ctx, digits)
	if err != nil {
		c.log.Error("phone lookup failed", logger.Error(err))
		return reply("internal")
	}
	if user == nil {
		return reply("phone_unknown")
	}
	if user.Linked() {
		return reply("phone_linked")
	}

	if err := c.stg.Registration().Upsert(ctx, viberID, digits); err != nil {
		return reply("internal")
	}
	c.Audit(ctx, viberID, models.ActionPhoneSubmitted, digits)

	return Reply{Text: messages["phone_ok"], Keyboard: cancelKeyboard()}
}

func (c *conversation) confirmPlot(ctx context.Context, viberID string, pending *models.PendingRegistration, text string) Reply {
	if cancelWords[strings.ToLower(text)] {
		if err := c.stg.Registration().Delete(ctx, viberID); err != nil {
			c.log.Error("failed to cancel registration", logger.Error(err))
			return reply("internal")
		}
		c.Audit(ctx, viberID, models.ActionRegistrationCancel, pending.Phone)
		return reply("cancelled")
	}

	if !isDigits(text) {
		return Reply{Text: messages["plot_format"], Keyboard: cancelKeyboard()}
	}

	user, err := c.stg.User().GetUnlinkedByPlotAndPhone(ctx, text, pending.Phone)
	if err != nil {
		c.log.Error("plot lookup failed", logger.Error(err))
		return reply("internal")
	}
	if user == nil {
		return Reply{Text: messages["plot_unknown"], Keyboard: cancelKeyboard()}
	}

	details, err := c.gw.UserDetails(ctx, viberID)
	if err != nil {
		c.log.Warning("viber user details unavailable", logger.String("viber_id", viberID), logger.Error(err))
		details = nil
	}

	linked, err := c.users.Link(ctx, user.ID, viberID, details)
	if err != nil {
		return reply("internal")
	}
	if !linked {
		return reply("plot_taken")
	}

	if err := c.stg.Registration().Delete(ctx, viberID); err != nil {
		c.log.Warning("failed to delete consumed registration", logger.String("viber_id", viberID), logger.Error(err))
	}
	c.Audit(ctx, viberID, models.ActionRegistered, user.PlotNumber)
	c.log.Info("viber identity linked", logger.String("viber_id", viberID), logger.String("plot", user.PlotNumber))

	return menuReply(fmt.Sprintf(messages["registered"], user.PlotNumber))
}
