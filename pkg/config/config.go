package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	API           APIConfig
	Defaults      DefaultsConfig
	Heartbeat     HeartbeatConfig
	Notifications NotificationConfig
	SMTP          SMTPConfig
	SMS           SMSConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// APIConfig tunes list endpoints and the settings cache.
type APIConfig struct {
	ListLimit        int
	CacheEnabled     bool
	SettingsCacheTTL time.Duration
}

// DefaultsConfig holds the values applied to events when neither the payload nor the user's settings provide one.
type DefaultsConfig struct {
	Time             string
	UTCOffset        string
	NotificationType string
}

// HeartbeatConfig drives the periodic expiry scan and its worker pool.
type HeartbeatConfig struct {
	Schedule           string
	QuotaResetSchedule string
	Timezone           string
	WorkerConcurrency  int
	WorkerRetries      int
	WorkerRetryDelay   time.Duration
	QueueSize          int
	MetricsPort        int
}

// NotificationConfig controls retries and monthly allotments.
type NotificationConfig struct {
	MaxRetries             int
	FreeEmailNotifications int
	FreeSMSNotifications   int
	Signature              string
}

// SMTPConfig configures the outgoing mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMSConfig configures the Vonage SMS gateway.
type SMSConfig struct {
	APIKey     string
	APISecret  string
	GatewayURL string
	SenderName string
	RatePerSec int
	Timeout    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.API = APIConfig{
		ListLimit:        v.GetInt("LIST_LIMIT"),
		CacheEnabled:     v.GetBool("ENABLE_SETTINGS_CACHE"),
		SettingsCacheTTL: parseDuration(v.GetString("SETTINGS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Defaults = DefaultsConfig{
		Time:             v.GetString("DEFAULT_TIME"),
		UTCOffset:        v.GetString("DEFAULT_UTC_OFFSET"),
		NotificationType: v.GetString("DEFAULT_NOTIFICATION_TYPE"),
	}

	cfg.Heartbeat = HeartbeatConfig{
		Schedule:           v.GetString("HEARTBEAT_SCHEDULE"),
		QuotaResetSchedule: v.GetString("QUOTA_RESET_SCHEDULE"),
		Timezone:           v.GetString("HEARTBEAT_TIMEZONE"),
		WorkerConcurrency:  v.GetInt("WORKER_CONCURRENCY"),
		WorkerRetries:      v.GetInt("WORKER_RETRIES"),
		WorkerRetryDelay:   parseDuration(v.GetString("WORKER_RETRY_DELAY"), 5*time.Second),
		QueueSize:          v.GetInt("WORKER_QUEUE_SIZE"),
		MetricsPort:        v.GetInt("METRICS_PORT"),
	}

	cfg.Notifications = NotificationConfig{
		MaxRetries:             v.GetInt("NOTIFICATION_MAX_RETRIES"),
		FreeEmailNotifications: v.GetInt("FREE_EMAIL_NOTIFICATIONS"),
		FreeSMSNotifications:   v.GetInt("FREE_SMS_NOTIFICATIONS"),
		Signature:              v.GetString("NOTIFICATION_SIGNATURE"),
	}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
	}

	cfg.SMS = SMSConfig{
		APIKey:     v.GetString("VONAGE_API_KEY"),
		APISecret:  v.GetString("VONAGE_API_SECRET"),
		GatewayURL: v.GetString("SMS_GATEWAY_URL"),
		SenderName: v.GetString("SMS_SENDER_NAME"),
		RatePerSec: v.GetInt("SMS_RATE_PER_SEC"),
		Timeout:    parseDuration(v.GetString("SMS_TIMEOUT"), 10*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dont_forgetter")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LIST_LIMIT", 50)
	v.SetDefault("ENABLE_SETTINGS_CACHE", true)
	v.SetDefault("SETTINGS_CACHE_TTL", "10m")

	v.SetDefault("DEFAULT_TIME", "10:00")
	v.SetDefault("DEFAULT_UTC_OFFSET", "+0")
	v.SetDefault("DEFAULT_NOTIFICATION_TYPE", "email")

	v.SetDefault("HEARTBEAT_SCHEDULE", "@every 1m")
	v.SetDefault("QUOTA_RESET_SCHEDULE", "0 0 1 * *")
	v.SetDefault("HEARTBEAT_TIMEZONE", "UTC")
	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("WORKER_RETRIES", 3)
	v.SetDefault("WORKER_RETRY_DELAY", "5s")
	v.SetDefault("WORKER_QUEUE_SIZE", 256)
	v.SetDefault("METRICS_PORT", 9090)

	v.SetDefault("NOTIFICATION_MAX_RETRIES", 3)
	v.SetDefault("FREE_EMAIL_NOTIFICATIONS", 100)
	v.SetDefault("FREE_SMS_NOTIFICATIONS", 10)
	v.SetDefault("NOTIFICATION_SIGNATURE", "Sent by dont-forgetter")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@dont-forgetter.local")

	v.SetDefault("VONAGE_API_KEY", "")
	v.SetDefault("VONAGE_API_SECRET", "")
	v.SetDefault("SMS_GATEWAY_URL", "https://rest.nexmo.com/sms/json")
	v.SetDefault("SMS_SENDER_NAME", "dont-forgetter")
	v.SetDefault("SMS_RATE_PER_SEC", 1)
	v.SetDefault("SMS_TIMEOUT", "10s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

