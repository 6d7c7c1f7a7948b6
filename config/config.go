package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	ServiceName string
	LoggerLevel string
	Timezone    string

	AppPort     int
	NotifyToken string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsPath   string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	ViberAuthToken       string
	ViberAPIURL          string
	ViberSenderName      string
	ViberWebhookURL      string
	ViberVerifySignature bool

	PhoneCountryCode string
	RegistrationTTL  time.Duration
	DefaultTariff    string
	Requisites       string

	ReminderHour         int
	ReminderPollInterval time.Duration

	AdminBotToken string
	AdminID       int64
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "plotbot"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.Timezone = cast.ToString(getOrReturnDefault("TIMEZONE", "Europe/Kyiv"))

	cfg.AppPort = cast.ToInt(getOrReturnDefault("APP_PORT", 8080))
	cfg.NotifyToken = cast.ToString(getOrReturnDefault("NOTIFY_TOKEN", ""))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "plotbot"))
	cfg.MigrationsPath = cast.ToString(getOrReturnDefault("MIGRATIONS_PATH", "migrations"))

	cfg.RedisEnabled = cast.ToBool(getOrReturnDefault("REDIS_ENABLED", false))
	cfg.RedisHost = cast.ToString(getOrReturnDefault("REDIS_HOST", "localhost"))
	cfg.RedisPort = cast.ToString(getOrReturnDefault("REDIS_PORT", "6379"))
	cfg.RedisPassword = cast.ToString(getOrReturnDefault("REDIS_PASSWORD", ""))
	cfg.RedisDB = cast.ToInt(getOrReturnDefault("REDIS_DB", 0))

	cfg.ViberAuthToken = cast.ToString(getOrReturnDefault("VIBER_AUTH_TOKEN", ""))
	cfg.ViberAPIURL = cast.ToString(getOrReturnDefault("VIBER_API_URL", "https://chatapi.viber.com/pa"))
	cfg.ViberSenderName = cast.ToString(getOrReturnDefault("VIBER_SENDER_NAME", "Электроучёт"))
	cfg.ViberWebhookURL = cast.ToString(getOrReturnDefault("VIBER_WEBHOOK_URL", ""))
	cfg.ViberVerifySignature = cast.ToBool(getOrReturnDefault("VIBER_VERIFY_SIGNATURE", true))

	cfg.PhoneCountryCode = cast.ToString(getOrReturnDefault("PHONE_COUNTRY_CODE", "380"))
	cfg.RegistrationTTL = cast.ToDuration(getOrReturnDefault("REGISTRATION_TTL", "24h"))
	cfg.DefaultTariff = cast.ToString(getOrReturnDefault("DEFAULT_TARIFF", "4.75"))
	cfg.Requisites = cast.ToString(getOrReturnDefault("REQUISITES", "Реквизиты для оплаты уточняйте у правления."))

	cfg.ReminderHour = cast.ToInt(getOrReturnDefault("REMINDER_HOUR", 10))
	cfg.ReminderPollInterval = cast.ToDuration(getOrReturnDefault("REMINDER_POLL_INTERVAL", "1m"))

	cfg.AdminBotToken = cast.ToString(getOrReturnDefault("ADMIN_BOT_TOKEN", ""))
	cfg.AdminID = cast.ToInt64(getOrReturnDefault("ADMIN_ID", 0))

	return cfg
}

// Location falls back to UTC when the configured zone is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
