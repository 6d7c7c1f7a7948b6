package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"plotbot/pkg/logger"
	"plotbot/pkg/models"
)

type Command string

const (
	CmdInfo          Command = "info"
	CmdReadings      Command = "readings"
	CmdPayment       Command = "payment-history"
	CmdRequisites    Command = "requisites"
	CmdConsumption   Command = "consumption"
	CmdNotifications Command = "toggle-notifications"
	CmdReminderDay   Command = "set-reminder-day"
	CmdPhone         Command = "show-phone"
	CmdUnlink        Command = "unlink"
	CmdHelp          Command = "help"
)

const (
	readingsShown = 3
	dateLayout    = "02.01.2006"
	monthLayout   = "01.2006"
)

var commandAliases = map[string]Command{
	"инфо":          CmdInfo,
	"информация":    CmdInfo,
	"info":          CmdInfo,
	"показания":     CmdReadings,
	"readings":      CmdReadings,
	"оплата":        CmdPayment,
	"payment":       CmdPayment,
	"реквизиты":     CmdRequisites,
	"requisites":    CmdRequisites,
	"расход":        CmdConsumption,
	"потребление":   CmdConsumption,
	"consumption":   CmdConsumption,
	"уведомления":   CmdNotifications,
	"notifications": CmdNotifications,
	"напоминание":   CmdReminderDay,
	"reminder":      CmdReminderDay,
	"телефон":       CmdPhone,
	"phone":         CmdPhone,
	"отвязать":      CmdUnlink,
	"unlink":        CmdUnlink,
	"помощь":        CmdHelp,
	"help":          CmdHelp,
	"меню":          CmdHelp,
	"menu":          CmdHelp,
	"start":         CmdHelp,
	"/start":        CmdHelp,
	"/help":         CmdHelp,
}

type commandHandler func(ctx context.Context, user *models.User, args []string) (Reply, error)

func (c *conversation) commandTable() map[Command]commandHandler {
	return map[Command]commandHandler{
		CmdInfo:          c.cmdInfo,
		CmdReadings:      c.cmdReadings,
		CmdPayment:       c.cmdPayment,
		CmdRequisites:    c.cmdRequisites,
		CmdConsumption:   c.cmdConsumption,
		CmdNotifications: c.cmdToggleNotifications,
		CmdReminderDay:   c.cmdReminderDay,
		CmdPhone:         c.cmdPhone,
		CmdUnlink:        c.cmdUnlink,
		CmdHelp:          c.cmdHelp,
	}
}

// ParseCommand matches the first word case-insensitively. A bare number in
// the reminder range is read as set-reminder-day.
func ParseCommand(text string) (Command, []string, bool) {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return "", nil, false
	}
	if cmd, ok := commandAliases[fields[0]]; ok {
		return cmd, fields[1:], true
	}
	if len(fields) == 1 {
		if day, err := strconv.Atoi(fields[0]); err == nil && validReminderDay(day) {
			return CmdReminderDay, fields, true
		}
	}
	return "", nil, false
}

func (c *conversation) dispatch(ctx context.Context, user *models.User, text string) Reply {
	cmd, args, ok := ParseCommand(text)
	if !ok {
		return menuReply(messages["unknown"])
	}

	viberID := ""
	if user.ViberID != nil {
		viberID = *user.ViberID
	}
	c.Audit(ctx, viberID, models.ActionCommand, string(cmd))

	r, err := c.commands[cmd](ctx, user, args)
	if err != nil {
		c.log.Error("command failed",
			logger.String("command", string(cmd)),
			logger.Int64("user_id", user.ID),
			logger.Error(err),
		)
		return reply("internal")
	}
	return r
}

func (c *conversation) cmdInfo(ctx context.Context, user *models.User, _ []string) (Reply, error) {
	tariff, err := c.ledger.CurrentTariff(ctx)
	if err != nil {
		return Reply{}, err
	}
	payment, err := c.ledger.LatestPayment(ctx, user.ID)
	if err != nil {
		return Reply{}, err
	}

	debt := messages["no_data"]
	if payment != nil {
		debt = formatMoney(payment.Debt) + " грн"
	}
	return menuReply(fmt.Sprintf(messages["info"], user.PlotNumber, user.FullName, debt, formatMoney(tariff))), nil
}

func (c *conversation) cmdReadings(ctx context.Context, user *models.User, _ []string) (Reply, error) {
	readings, err := c.ledger.LastReadings(ctx, user.ID, readingsShown)
	if err != nil {
		return Reply{}, err
	}
	if len(readings) == 0 {
		return menuReply(messages["no_readings"]), nil
	}

	lines := make([]string, 0, len(readings))
	for _, r := range readings {
		lines = append(lines, fmt.Sprintf("%s: %s кВт·ч", r.ReadingDate.Format(dateLayout), formatKWh(r.Value)))
	}
	return menuReply(fmt.Sprintf(messages["readings"], strings.Join(lines, "\n"))), nil
}

func (c *conversation) cmdPayment(ctx context.Context, user *models.User, _ []string) (Reply, error) {
	payment, err := c.ledger.LatestPayment(ctx, user.ID)
	if err != nil {
		return Reply{}, err
	}
	if payment == nil {
		return menuReply(messages["no_payments"]), nil
	}

	tariff := c.ledger.PaymentTariff(payment)
	amount := payment.PaidReading.Mul(tariff)
	return menuReply(fmt.Sprintf(messages["payment"],
		payment.PaymentDate.Format(dateLayout),
		formatKWh(payment.PaidReading),
		formatMoney(tariff),
		formatMoney(amount),
	)), nil
}

func (c *conversation) cmdRequisites(_ context.Context, _ *models.User, _ []string) (Reply, error) {
	return menuReply(c.opts.Requisites), nil
}

func (c *conversation) cmdConsumption(ctx context.Context, user *models.User, _ []string) (Reply, error) {
	readings, err := c.ledger.LastReadings(ctx, user.ID, consumptionWindow)
	if err != nil {
		return Reply{}, err
	}

	report := Consumption(readings)
	if !report.Sufficient() {
		return menuReply(messages["no_consumption"]), nil
	}

	lines := make([]string, 0, len(report.Months))
	for _, m := range report.Months {
		lines = append(lines, fmt.Sprintf("%s: %s кВт·ч", m.To.Format(monthLayout), formatKWh(m.KWh)))
	}
	text := fmt.Sprintf(messages["consumption"], strings.Join(lines, "\n"))
	if report.Average.Valid {
		text += fmt.Sprintf(messages["consumption_av"], formatKWh(report.Average.Decimal))
	}
	return menuReply(text), nil
}

func (c *conversation) cmdToggleNotifications(ctx context.Context, user *models.User, _ []string) (Reply, error) {
	enabled, err := c.users.ToggleNotifications(ctx, user)
	if err != nil {
		return Reply{}, err
	}
	if enabled {
		return menuReply(messages["notif_on"]), nil
	}
	return menuReply(messages["notif_off"]), nil
}

func (c *conversation) cmdReminderDay(ctx context.Context, user *models.User, args []string) (Reply, error) {
	if len(args) == 0 {
		return menuReply(messages["reminder_ask"]), nil
	}

	day, err := strconv.Atoi(args[0])
	if err != nil || !validReminderDay(day) {
		return menuReply(messages["unknown"]), nil
	}
	if err := c.users.SetReminderDay(ctx, user.ID, day); err != nil {
		return Reply{}, err
	}
	return menuReply(fmt.Sprintf(messages["reminder_set"], day)), nil
}

func (c *conversation) cmdPhone(_ context.Context, user *models.User, _ []string) (Reply, error) {
	if user.Phone == nil || *user.Phone == "" {
		return menuReply(messages["phone_none"]), nil
	}
	return menuReply(fmt.Sprintf(messages["phone"], *user.Phone)), nil
}

func (c *conversation) cmdUnlink(ctx context.Context, user *models.User, _ []string) (Reply, error) {
	if err := c.users.Unlink(ctx, user.ID); err != nil {
		return Reply{}, err
	}
	viberID := ""
	if user.ViberID != nil {
		viberID = *user.ViberID
	}
	c.Audit(ctx, viberID, models.ActionUnlinked, user.PlotNumber)
	return reply("unlinked"), nil
}

func (c *conversation) cmdHelp(_ context.Context, _ *models.User, _ []string) (Reply, error) {
	return menuReply(helpText), nil
}
