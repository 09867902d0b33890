package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreBadger   = "badger"
	StoreSupabase = "supabase"
)

type Config struct {
	APIURL         string
	RequestTimeout time.Duration
	SubmitTimeout  time.Duration
	QueryStaleTime time.Duration

	// CreditPassword подставляется вместо CreditSentinel при пополнении кошелька.
	CreditPassword string
	CreditSentinel string

	TelegramToken   string
	OperatorChatIDs []int64
	HTTPAddr        string
	WebhookPath     string
	// WebhookURL публичный адрес webhook; если задан, регистрируется при старте.
	WebhookURL      string
	// WebhookSecret сверяется с заголовком X-Telegram-Bot-Api-Secret-Token.
	WebhookSecret   string

	StoreBackend  string
	StorePath     string
	SupabaseURL   string
	SupabaseKey   string
	SupabaseTable string

	LogLevel string
}

// LoadConfig читает .env (если есть) и переменные окружения и проверяет
// обязательные параметры.
func LoadConfig() (*Config, error) {
	// .env необязателен, в контейнере всё приходит из окружения
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("SUBMIT_TIMEOUT", "30s")
	v.SetDefault("QUERY_STALE_TIME", "60s")
	v.SetDefault("STORE_BACKEND", StoreBadger)
	v.SetDefault("STORE_PATH", "./data/operator")
	v.SetDefault("SUPABASE_TABLE", "operator_state")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("WEBHOOK_PATH", "/telegram/webhook")
	v.SetDefault("LOG_LEVEL", "info")
}

func fromViper(v *viper.Viper) (*Config, error) {
	chatIDs, err := parseChatIDs(v.GetString("OPERATOR_CHAT_IDS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIURL:          strings.TrimRight(v.GetString("API_URL"), "/"),
		RequestTimeout:  v.GetDuration("REQUEST_TIMEOUT"),
		SubmitTimeout:   v.GetDuration("SUBMIT_TIMEOUT"),
		QueryStaleTime:  v.GetDuration("QUERY_STALE_TIME"),
		CreditPassword:  v.GetString("CREDIT_PASSWORD"),
		CreditSentinel:  v.GetString("CREDIT_SENTINEL"),
		TelegramToken:   v.GetString("TELEGRAM_TOKEN"),
		OperatorChatIDs: chatIDs,
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		WebhookPath:     v.GetString("WEBHOOK_PATH"),
		WebhookURL:      v.GetString("WEBHOOK_URL"),
		WebhookSecret:   v.GetString("WEBHOOK_SECRET"),
		StoreBackend:    strings.ToLower(v.GetString("STORE_BACKEND")),
		StorePath:       v.GetString("STORE_PATH"),
		SupabaseURL:     v.GetString("SUPABASE_URL"),
		SupabaseKey:     v.GetString("SUPABASE_KEY"),
		SupabaseTable:   v.GetString("SUPABASE_TABLE"),
		LogLevel:        v.GetString("LOG_LEVEL"),
	}
	return cfg, nil
}

func parseChatIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OPERATOR_CHAT_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SentinelEnabled сообщает, включена ли подстановка пароля.
// Подстановка работает только когда заданы оба значения.
func (c *Config) SentinelEnabled() bool {
	return c.CreditSentinel != "" && c.CreditPassword != ""
}

// Validate проверяет обязательные параметры.
func (c *Config) Validate() error {
	var errs []error
	if c.APIURL == "" {
		errs = append(errs, errors.New("API_URL is required"))
	}
	if c.TelegramToken == "" {
		errs = append(errs, errors.New("TELEGRAM_TOKEN is required"))
	}
	if len(c.OperatorChatIDs) == 0 {
		errs = append(errs, errors.New("OPERATOR_CHAT_IDS is required"))
	}
	switch c.StoreBackend {
	case StoreBadger:
		if c.StorePath == "" {
			errs = append(errs, errors.New("STORE_PATH is required for badger store"))
		}
	case StoreSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_KEY are required for supabase store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.SubmitTimeout <= 0 {
		errs = append(errs, errors.New("SUBMIT_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateWebhook дополнительные требования режима webhook.
func (c *Config) ValidateWebhook() error {
	var errs []error
	if c.WebhookPath == "" {
		errs = append(errs, errors.New("WEBHOOK_PATH is required"))
	}
	if c.WebhookSecret == "" {
		errs = append(errs, errors.New("WEBHOOK_SECRET is required in webhook mode"))
	}
	return errors.Join(errs...)
}
