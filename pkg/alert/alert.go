package alert

import (
	tele "gopkg.in/telebot.v3"

	"plotbot/pkg/logger"
)

// Notifier posts operational messages to the administrator.
type Notifier interface {
	Notify(text string)
}

type telegramNotifier struct {
	bot   *tele.Bot
	admin *tele.User
	log   logger.ILogger
}

// New returns a Telegram-backed notifier, or a no-op one when token or
// admin id are not configured.
func New(token string, adminID int64, log logger.ILogger) (Notifier, error) {
	if token == "" || adminID == 0 {
		return Nop{}, nil
	}

	b, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &telegramNotifier{bot: b, admin: &tele.User{ID: adminID}, log: log}, nil
}

func (n *telegramNotifier) Notify(text string) {
	if _, err := n.bot.Send(n.admin, text); err != nil {
		n.log.Warning("admin alert failed", logger.Error(err))
	}
}

type Nop struct{}

func (Nop) Notify(string) {}
