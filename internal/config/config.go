package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fsdevblog/shortlinks/internal/db"
	"github.com/fsdevblog/shortlinks/internal/models"
	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
)

// Значения по умолчанию.
const (
	DefaultServerAddress     = "localhost:8080"
	DefaultTTL               = 120 * time.Hour
	DefaultCodeLength        = 6
	DefaultCodeAlphabet      = "abcdefghijklmnopqrstuvwxyz0123456789"
	DefaultMaxCreateAttempts = 10
	DefaultPurgeInterval     = time.Hour
	DefaultExpiredRetention  = 720 * time.Hour
	DefaultCacheTTL          = 10 * time.Minute
	DefaultLogLevel          = "info"
	DefaultTLSCertFile       = "certs/cert.pem"
	DefaultTLSKeyFile        = "certs/key.pem"
)

type Config struct {
	// Адрес, на котором запустится сервер
	ServerAddress string `env:"SERVER_ADDRESS"`
	// Базовый адрес результирующего сокращенного URL
	BaseURL *url.URL `env:"BASE_URL"`
	// Строка подключения к PostgreSQL
	DatabaseDSN string `env:"DATABASE_DSN"`
	// Путь к файлу SQLite
	SQLitePath string `env:"SQLITE_PATH"`
	// Адрес Redis для кэша ссылок, пустой отключает кэш
	RedisURL string `env:"REDIS_URL"`
	// Срок жизни ссылки, если клиент его не указал. 0 делает такие ссылки бессрочными
	DefaultTTL time.Duration `env:"DEFAULT_TTL"`

	CodeLength        int           `env:"CODE_LENGTH"`
	CodeAlphabet      string        `env:"CODE_ALPHABET"`
	MaxCreateAttempts int           `env:"MAX_CREATE_ATTEMPTS"`
	PurgeInterval     time.Duration `env:"PURGE_INTERVAL"`
	ExpiredRetention  time.Duration `env:"EXPIRED_RETENTION"`
	CacheTTL          time.Duration `env:"CACHE_TTL"`
	LogLevel          string        `env:"LOG_LEVEL"`

	// HTTPS режим; при отсутствии пары сертификат/ключ выписывается самоподписанная
	EnableHTTPS bool   `env:"ENABLE_HTTPS"`
	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`
}

// StorageType выбирает хранилище: PostgreSQL, если задан DSN, затем SQLite, иначе память.
func (c *Config) StorageType() db.StorageType {
	switch {
	case c.DatabaseDSN != "":
		return db.StorageTypePostgres
	case c.SQLitePath != "":
		return db.StorageTypeSQLite
	default:
		return db.StorageTypeInMemory
	}
}

// LoadConfig читает .env (если есть), переменные окружения и флаги командной строки.
// Переменные окружения имеют приоритет над флагами.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, pkgerrors.Wrap(err, "load .env file")
	}
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	var envConfig Config
	envSet := make(envKeys)
	opts := env.Options{
		// OnSet вызывается и для отсутствующих переменных, поэтому наличие проверяется отдельно.
		OnSet: func(tag string, _ any, _ bool) {
			if v, ok := os.LookupEnv(tag); ok && v != "" {
				envSet[tag] = true
			}
		},
	}
	if err := env.ParseWithOptions(&envConfig, opts); err != nil {
		return nil, pkgerrors.Wrapf(err, "parse ENV config error")
	}

	flagsConfig, err := parseFlags(args)
	if err != nil {
		return nil, err
	}

	conf := mergeConfig(&envConfig, flagsConfig, envSet)
	if validateErr := conf.validate(); validateErr != nil {
		return nil, validateErr
	}
	return conf, nil
}

// parseFlags парсит флаги командной строки.
func parseFlags(args []string) (*Config, error) {
	flagsConfig := Config{
		CodeLength:        DefaultCodeLength,
		CodeAlphabet:      DefaultCodeAlphabet,
		MaxCreateAttempts: DefaultMaxCreateAttempts,
		PurgeInterval:     DefaultPurgeInterval,
		ExpiredRetention:  DefaultExpiredRetention,
		CacheTTL:          DefaultCacheTTL,
	}
	fSet := flag.NewFlagSet("shortener", flag.ContinueOnError)

	fSet.StringVar(&flagsConfig.ServerAddress, "a", DefaultServerAddress, "Адрес сервера")
	bDesc := "Базовый адрес результирующего сокращенного URL (по умолчанию Scheme://Host запущенного сервера)"
	fSet.Func("b", bDesc, func(rawURL string) error {
		parsedURL, err := url.ParseRequestURI(rawURL)
		if err != nil {
			return pkgerrors.Wrap(err, "failed to parse base url")
		}
		flagsConfig.BaseURL = trimBaseURL(parsedURL)
		return nil
	})
	fSet.StringVar(&flagsConfig.DatabaseDSN, "d", "", "Строка подключения к PostgreSQL")
	fSet.StringVar(&flagsConfig.SQLitePath, "s", "", "Путь к файлу SQLite")
	fSet.StringVar(&flagsConfig.RedisURL, "r", "", "Адрес Redis (redis://host:6379/0)")
	fSet.DurationVar(&flagsConfig.DefaultTTL, "t", DefaultTTL, "Срок жизни ссылки по умолчанию")
	fSet.StringVar(&flagsConfig.LogLevel, "log-level", DefaultLogLevel, "Уровень логирования")
	fSet.BoolVar(&flagsConfig.EnableHTTPS, "tls", false, "Включить HTTPS")
	fSet.StringVar(&flagsConfig.TLSCertFile, "tls-cert", DefaultTLSCertFile, "Путь к сертификату")
	fSet.StringVar(&flagsConfig.TLSKeyFile, "tls-key", DefaultTLSKeyFile, "Путь к приватному ключу")

	if err := fSet.Parse(args); err != nil {
		return nil, pkgerrors.Wrap(err, "parse flags")
	}
	return &flagsConfig, nil
}

// envKeys переменные окружения, которые были заданы явно.
type envKeys map[string]bool

// mergeConfig сливает структуры для env и флагов.
// Строки из env берутся, если не пустые. Числа, длительности и флаги берутся из env,
// если переменная задана, даже с нулевым значением: DEFAULT_TTL=0 означает бессрочные ссылки.
func mergeConfig(envConfig, flagsConfig *Config, set envKeys) *Config {
	baseURL := defaultIfBlank(envConfig.BaseURL, flagsConfig.BaseURL)
	if baseURL != nil {
		baseURL = trimBaseURL(baseURL)
	}
	return &Config{
		ServerAddress:     defaultIfBlank(envConfig.ServerAddress, flagsConfig.ServerAddress),
		BaseURL:           baseURL,
		DatabaseDSN:       defaultIfBlank(envConfig.DatabaseDSN, flagsConfig.DatabaseDSN),
		SQLitePath:        defaultIfBlank(envConfig.SQLitePath, flagsConfig.SQLitePath),
		RedisURL:          defaultIfBlank(envConfig.RedisURL, flagsConfig.RedisURL),
		DefaultTTL:        fromEnv(set, "DEFAULT_TTL", envConfig.DefaultTTL, flagsConfig.DefaultTTL),
		CodeLength:        fromEnv(set, "CODE_LENGTH", envConfig.CodeLength, flagsConfig.CodeLength),
		CodeAlphabet:      defaultIfBlank(envConfig.CodeAlphabet, flagsConfig.CodeAlphabet),
		MaxCreateAttempts: fromEnv(set, "MAX_CREATE_ATTEMPTS", envConfig.MaxCreateAttempts, flagsConfig.MaxCreateAttempts),
		PurgeInterval:     fromEnv(set, "PURGE_INTERVAL", envConfig.PurgeInterval, flagsConfig.PurgeInterval),
		ExpiredRetention:  fromEnv(set, "EXPIRED_RETENTION", envConfig.ExpiredRetention, flagsConfig.ExpiredRetention),
		CacheTTL:          fromEnv(set, "CACHE_TTL", envConfig.CacheTTL, flagsConfig.CacheTTL),
		LogLevel:          defaultIfBlank(envConfig.LogLevel, flagsConfig.LogLevel),
		EnableHTTPS:       fromEnv(set, "ENABLE_HTTPS", envConfig.EnableHTTPS, flagsConfig.EnableHTTPS),
		TLSCertFile:       defaultIfBlank(envConfig.TLSCertFile, flagsConfig.TLSCertFile),
		TLSKeyFile:        defaultIfBlank(envConfig.TLSKeyFile, flagsConfig.TLSKeyFile),
	}
}

func (c *Config) validate() error {
	switch {
	case c.CodeLength < models.MinShortCodeLength || c.CodeLength > models.MaxShortCodeLength:
		return fmt.Errorf("code length must be in [%d, %d], got %d",
			models.MinShortCodeLength, models.MaxShortCodeLength, c.CodeLength)
	case c.DefaultTTL < 0:
		return fmt.Errorf("default ttl must not be negative, got %s", c.DefaultTTL)
	case c.MaxCreateAttempts < 1:
		return fmt.Errorf("max create attempts must be positive, got %d", c.MaxCreateAttempts)
	case c.PurgeInterval <= 0:
		return fmt.Errorf("purge interval must be positive, got %s", c.PurgeInterval)
	case c.CacheTTL <= 0:
		return fmt.Errorf("cache ttl must be positive, got %s", c.CacheTTL)
	case c.ExpiredRetention < 0:
		return fmt.Errorf("expired retention must not be negative, got %s", c.ExpiredRetention)
	}
	return nil
}

// trimBaseURL отсекает Path и Query, если они заданы в базовом урле.
func trimBaseURL(u *url.URL) *url.URL {
	return &url.URL{
		Scheme: u.Scheme,
		Host:   u.Host,
	}
}

// fromEnv возвращает значение из env, если переменная key была задана, иначе значение флага.
func fromEnv[T any](set envKeys, key string, envValue, flagValue T) T {
	if set[key] {
		return envValue
	}
	return flagValue
}

func defaultIfBlank[T comparable](value T, defaultValue T) T {
	var zero T
	if value == zero {
		return defaultValue
	}
	return value
}
