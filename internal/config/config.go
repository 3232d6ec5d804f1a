// Package config предоставляет структуры и функции для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string        `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	TimeZone                string        `yaml:"timezone" env:"TIMEZONE" env-default:"Europe/Moscow"`
	SessionTTL              time.Duration `yaml:"session_ttl" env-default:"1h"`

	Telegram     Telegram     `yaml:"telegram"`
	Availability Availability `yaml:"availability"`
	Scheduler    Scheduler    `yaml:"scheduler"`
	RabbitMQ     RabbitMQ     `yaml:"rabbitmq"`
	Broadcast    Broadcast    `yaml:"broadcast"`

	RedisConnection `yaml:"redis_connection"`
	HTTPServer      `yaml:"http_server"`
	JWTToken        `yaml:"jwttoken"`

	Products       []models.Product       `yaml:"products"`
	PaymentMethods []models.PaymentMethod `yaml:"payment_methods"`
}

// Telegram настройки бота и канала
type Telegram struct {
	Token     string `yaml:"token" env:"TELEGRAM_BOT_TOKEN" env-required:"true"`
	ChannelID int64  `yaml:"channel_id" env:"TELEGRAM_CHANNEL_ID" env-required:"true"`
	AdminID   int64  `yaml:"admin_id" env:"TELEGRAM_ADMIN_ID" env-required:"true"`
}

// Availability календарное окно продаж для закрытых тарифов
type Availability struct {
	WindowStartDay int     `yaml:"window_start_day" env-default:"26"`
	WindowEndDay   int     `yaml:"window_end_day" env-default:"27"`
	ReminderDay    int     `yaml:"reminder_day" env-default:"25"`
	ReminderHour   int     `yaml:"reminder_hour" env-default:"18"`
	BypassUserIDs  []int64 `yaml:"bypass_user_ids"`
}

// Scheduler интервалы фоновых проверок
type Scheduler struct {
	ExpiredSubscriptions time.Duration `yaml:"expired_subscriptions" env-default:"1h"`
	RenewalNotices       time.Duration `yaml:"renewal_notices" env-default:"1h"`
	Reminders            time.Duration `yaml:"reminders" env-default:"1h"`
	PaymentTimeout       time.Duration `yaml:"payment_timeout" env-default:"15m"`
	RevocationTimers     time.Duration `yaml:"revocation_timers" env-default:"1m"`
	QueueCleanup         time.Duration `yaml:"queue_cleanup" env-default:"24h"`
}

// RabbitMQ подключение к брокеру
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL" env-required:"true"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Broadcast настройки рассылки
type Broadcast struct {
	SendInterval time.Duration `yaml:"send_interval" env-default:"100ms"`
	Retention    time.Duration `yaml:"retention" env-default:"168h"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"5"`
	RateBurst   int           `yaml:"rate_burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном администратора.
// Пустой AdminPasswordHash отключает вход по паролю, остаётся только cmd/admin-token.
type JWTToken struct {
	JWTSecretKey      string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY" env-required:"true"`
	TokenTTL          time.Duration `yaml:"token_ttl" env-default:"24h"`
	AdminUsername     string        `yaml:"admin_username" env:"ADMIN_USERNAME" env-default:"admin"`
	AdminPasswordHash string        `yaml:"admin_password_hash" env:"ADMIN_PASSWORD_HASH"`
}

// Load читает конфиг из файла path и переменных окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) validate() error {
	a := c.Availability
	if a.WindowStartDay < 1 || a.WindowEndDay > 28 || a.WindowStartDay > a.WindowEndDay {
		return fmt.Errorf("invalid availability window %d-%d", a.WindowStartDay, a.WindowEndDay)
	}
	if a.ReminderHour < 0 || a.ReminderHour > 23 {
		return fmt.Errorf("invalid reminder hour %d", a.ReminderHour)
	}
	seen := make(map[string]struct{}, len(c.Products))
	for _, p := range c.Products {
		if p.ID == "" {
			return errors.New("product without id")
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("duplicate product id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// Catalog собирает тарифы и способы оплаты из конфига.
func (c *Config) Catalog() models.Catalog {
	return models.Catalog{
		Products: c.Products,
		Methods:  c.PaymentMethods,
	}
}

// String печатает конфиг без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"TimeZone: %s\n"+
			"Telegram:\n"+
			"  ChannelID: %d\n"+
			"  AdminID: %d\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"Scheduler:\n"+
			"  ExpiredSubscriptions: %s\n"+
			"  RenewalNotices: %s\n"+
			"  PaymentTimeout: %s\n"+
			"Products: %d\n",
		c.Env,
		c.TimeZone,
		c.Telegram.ChannelID,
		c.Telegram.AdminID,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.Scheduler.ExpiredSubscriptions,
		c.Scheduler.RenewalNotices,
		c.Scheduler.PaymentTimeout,
		len(c.Products),
	)
}
