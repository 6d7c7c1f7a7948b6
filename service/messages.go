package service

import "plotbot/pkg/viber"

const (
	btnInfo          = "Инфо"
	btnReadings      = "Показания"
	btnPayment       = "Оплата"
	btnConsumption   = "Расход"
	btnRequisites    = "Реквизиты"
	btnNotifications = "Уведомления"
	btnHelp          = "Помощь"
	btnCancel        = "Отмена"
)

const helpText = "📋 Доступные команды:\n" +
	"• инфо — участок, долг и тариф\n" +
	"• показания — последние показания\n" +
	"• оплата — последняя оплата\n" +
	"• расход — потребление по месяцам\n" +
	"• реквизиты — реквизиты для оплаты\n" +
	"• уведомления — включить/выключить уведомления\n" +
	"• напоминание N — день напоминания (1–28)\n" +
	"• телефон — номер телефона\n" +
	"• отвязать — отключить Viber от участка\n" +
	"• помощь — этот список"

var messages = map[string]string{
	"welcome":        "👋 Здравствуйте! Это бот учёта электроэнергии.\nЧтобы подключиться, отправьте номер телефона в формате 380XXXXXXXXX.",
	"phone_format":   "❌ Неверный формат номера. Отправьте номер в формате 380XXXXXXXXX (12 цифр).",
	"phone_unknown":  "🔍 Номер не найден. Обратитесь к администратору.",
	"phone_linked":   "⚠️ Этот номер уже подключён к другому аккаунту Viber. Обратитесь к администратору.",
	"phone_ok":       "✅ Номер подтверждён. Теперь отправьте номер вашего участка (только цифры).\nДля отмены напишите «отмена».",
	"plot_format":    "❌ Номер участка должен состоять только из цифр. Для отмены напишите «отмена».",
	"plot_unknown":   "🔍 Участок не найден или не принадлежит этому номеру. Попробуйте ещё раз или напишите «отмена».",
	"plot_taken":     "⚠️ Участок уже подключён к другому аккаунту Viber. Обратитесь к администратору.",
	"cancelled":      "❎ Регистрация отменена. Чтобы начать заново, отправьте номер телефона.",
	"registered":     "🎉 Участок %s подключён!\n\n" + helpText,
	"unlinked":       "👋 Viber отключён от участка. Чтобы подключиться снова, отправьте номер телефона.",
	"unknown":        "🤔 Команда не распознана. Напишите «помощь», чтобы увидеть список команд.",
	"text_only":      "✍️ Я понимаю только текстовые сообщения.",
	"internal":       "⚠️ Сервис временно недоступен. Попробуйте позже.",
	"info":           "🏠 Участок: %s\n👤 Владелец: %s\n💰 Долг: %s\n⚡ Тариф: %s грн/кВт·ч",
	"no_data":        "нет данных",
	"readings":       "📊 Последние показания:\n%s",
	"no_readings":    "📭 Показаний пока нет.",
	"payment":        "💳 Последняя оплата:\nДата: %s\nОплаченное показание: %s кВт·ч\nТариф: %s грн/кВт·ч\nСумма: %s грн",
	"no_payments":    "📭 Оплат пока нет.",
	"consumption":    "⚡ Потребление по месяцам:\n%s",
	"consumption_av": "\n\nСреднее за последние месяцы: %s кВт·ч",
	"no_consumption": "📉 Недостаточно данных для расчёта потребления.",
	"notif_on":       "🔔 Уведомления включены: напоминания о передаче показаний и сообщения о начислениях и оплатах.",
	"notif_off":      "🔕 Уведомления выключены: напоминания о показаниях и сообщения об оплатах приходить не будут.",
	"reminder_ask":   "📅 Отправьте число от 1 до 28: в этот день месяца придёт напоминание о передаче показаний.",
	"reminder_set":   "📅 Напоминание будет приходить %d числа каждого месяца.",
	"phone":          "📞 Ваш номер: %s",
	"phone_none":     "📞 Номер телефона не указан.",
	"remind":         "⏰ Напоминание: пожалуйста, передайте показания счётчика за %s (участок %s).",
	"notify_reading": "📊 Принято показание %s кВт·ч от %s (участок %s).",
	"notify_payment": "💳 Зарегистрирована оплата от %s: показание %s кВт·ч, тариф %s грн/кВт·ч, сумма %s грн (участок %s).",
}

func mainKeyboard() *viber.Keyboard {
	return viber.NewReplyKeyboard(btnInfo, btnReadings, btnPayment, btnConsumption, btnRequisites, btnNotifications, btnHelp)
}

func cancelKeyboard() *viber.Keyboard {
	return viber.NewReplyKeyboard(btnCancel)
}

func reply(key string) Reply {
	return Reply{Text: messages[key]}
}

func menuReply(text string) Reply {
	return Reply{Text: text, Keyboard: mainKeyboard()}
}

// TextOnlyReply answers stickers, pictures and other non-text messages.
func TextOnlyReply() Reply {
	return reply("text_only")
}
