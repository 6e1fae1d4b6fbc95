package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Stripe struct {
		APIKey        string `mapstructure:"apiKey"`
		WebhookSecret string `mapstructure:"webhookSecret"`
	} `mapstructure:"stripe"`
	// Plans maps internal plan ids to Stripe price ids. This is the
	// identifier namespace the checkout flow translates through.
	Plans map[string]string `mapstructure:"plans"`
	Auth  struct {
		JWTSecret string `mapstructure:"jwtSecret"`
	} `mapstructure:"auth"`
}

// LoadConfig загружает конфигурацию из файла или переменных окружения.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env отсутствует в контейнерах — это не ошибка.
		_ = godotenv.Load(path)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults also register the keys so AutomaticEnv can override them
	// even without a config file.
	viper.SetDefault("app.port", "8080")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("kafka.brokers", []string{})
	viper.SetDefault("stripe.apiKey", "")
	viper.SetDefault("stripe.webhookSecret", "")
	viper.SetDefault("auth.jwtSecret", "")

	if err := viper.ReadInConfig(); err != nil {
		// Файл не обязателен: в контейнерах все приходит из окружения.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// validate проверяет обязательные значения, без которых сервис не
// может работать корректно.
func (c *Config) validate() error {
	if c.Stripe.WebhookSecret == "" {
		return errors.New("config: stripe webhook secret is required")
	}
	if c.Database.DSN == "" {
		return errors.New("config: database dsn is required")
	}
	return nil
}
