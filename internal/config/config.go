// internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL string
	AppEnv      string

	// Платёжный шлюз (Stripe)
	StripeSecretKey string

	// Доля платформы от суммы заказа (0..1). Инжектируется в сплиттер
	// комиссии и движок жизненного цикла при конструировании, а не
	// читается из окружения по месту.
	PlatformFeeRate float64

	// Grace period перед автоматической выплатой по выполненному заказу.
	PayoutGracePeriod time.Duration
	// Интервал прохода авторасчёта.
	SweepInterval time.Duration

	// Telegram-уведомления и deep links
	TelegramToken string
	BotUsername   string
	OwnerChatID   int64
}

// LoadConfig загружает конфигурацию из переменных окружения.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		AppEnv:          os.Getenv("ENV"),
		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		TelegramToken:   os.Getenv("TELEGRAM_APITOKEN"),
		BotUsername:     os.Getenv("BOT_USERNAME"),
	}

	var err error
	cfg.OwnerChatID, err = strconv.ParseInt(os.Getenv("OWNER_CHAT_ID"), 10, 64)
	if err != nil {
		log.Printf("Предупреждение: не удалось прочитать OWNER_CHAT_ID: %v. Установлено в 0.", err)
		cfg.OwnerChatID = 0
	}

	feeStr := os.Getenv("PLATFORM_FEE_RATE")
	if feeStr == "" {
		log.Printf("Предупреждение: PLATFORM_FEE_RATE не установлен, используется значение по умолчанию 0.10 (10%%).")
		cfg.PlatformFeeRate = 0.10
	} else {
		fee, errParse := strconv.ParseFloat(feeStr, 64)
		if errParse != nil || fee <= 0 || fee >= 1 {
			log.Printf("Предупреждение: некорректное значение PLATFORM_FEE_RATE ('%s'): %v. Используется значение по умолчанию 0.10.", feeStr, errParse)
			cfg.PlatformFeeRate = 0.10
		} else {
			cfg.PlatformFeeRate = fee
		}
	}

	cfg.PayoutGracePeriod = parseDurationEnv("PAYOUT_GRACE_PERIOD", 24*time.Hour)
	cfg.SweepInterval = parseDurationEnv("SWEEP_INTERVAL", time.Minute)

	if cfg.StripeSecretKey == "" {
		log.Println("Предупреждение: STRIPE_SECRET_KEY не установлен. Функции оплаты работать не будут.")
	}
	if cfg.TelegramToken == "" {
		log.Println("Предупреждение: TELEGRAM_APITOKEN не установлен. Уведомления отправляться не будут.")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Критическая ошибка: DATABASE_URL не установлен.")
	}

	log.Println("Конфигурация загружена.")
	return cfg, nil
}

func parseDurationEnv(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Предупреждение: некорректное значение %s ('%s'): %v. Используется значение по умолчанию %s.", name, raw, err, def)
		return def
	}
	return d
}
