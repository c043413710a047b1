// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RabbitMQConnection      string `yaml:"rabbitmq_connection" env:"RABBITMQ_CONNECTION"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	Panel                   `yaml:"panel"`
	Providers               `yaml:"providers"`
	Scheduler               `yaml:"scheduler"`
	AdminJWTSecret          string `yaml:"admin_jwt_secret" env:"ADMIN_JWT_SECRET"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// Panel структура для настройки клиента панели управления доступом
type Panel struct {
	BaseURL           string        `yaml:"base_url" env:"PANEL_BASE_URL"`
	APIToken          string        `yaml:"api_token" env:"PANEL_API_TOKEN"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env-default:"15s"`
	DefaultSquads     []string      `yaml:"default_squads"`
	TrialSquads       []string      `yaml:"trial_squads"`
	TrafficLimitBytes int64         `yaml:"traffic_limit_bytes"`
	TrialTrafficBytes int64         `yaml:"trial_traffic_bytes"`
	TrialDays         int           `yaml:"trial_days" env-default:"3"`
	ReferralBonusDays int           `yaml:"referral_bonus_days" env-default:"7"`
	WebhookSecret     string        `yaml:"webhook_secret" env:"PANEL_WEBHOOK_SECRET"`
}

// Providers секреты платёжных провайдеров
type Providers struct {
	TributeAPIKey   string `yaml:"tribute_api_key" env:"TRIBUTE_API_KEY"`
	FreekassaShopID string `yaml:"freekassa_shop_id" env:"FREEKASSA_SHOP_ID"`
	FreekassaAPIKey string `yaml:"freekassa_api_key" env:"FREEKASSA_API_KEY"`
	FreekassaSecret string `yaml:"freekassa_second_secret" env:"FREEKASSA_SECOND_SECRET"`
	YookassaSecret  string `yaml:"yookassa_webhook_secret" env:"YOOKASSA_WEBHOOK_SECRET"`
	CryptoPayToken  string `yaml:"cryptopay_token" env:"CRYPTOPAY_TOKEN"`
	// Секрет внутренней поверхности: подтверждения Stars, триал и промокоды от бота.
	InternalAPISecret string `yaml:"internal_api_secret" env:"INTERNAL_API_SECRET"`
}

// Scheduler настройки фонового цикла полной синхронизации
type Scheduler struct {
	ResyncInterval    time.Duration `yaml:"resync_interval" env-default:"1h"`
	ResyncConcurrency int           `yaml:"resync_concurrency" env-default:"8"`
	ResyncBatchSize   int           `yaml:"resync_batch_size" env-default:"500"`
}

// MustLoad функция для загрузки конфига, путь берётся из переменной CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
