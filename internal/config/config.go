package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	AppName string `env:"APP_NAME,default=sfcollab API"`
	Env     string `env:"APP_ENV,default=development"`
	Host    string `env:"HTTP_HOST,default=0.0.0.0"`
	Port    int    `env:"HTTP_PORT,default=8000"`

	StoreDriver string `env:"STORE_DRIVER,default=sqlite"`
	SQLitePath  string `env:"SQLITE_PATH,default=sfcollab.db"`
	Postgres    struct {
		Host     string `env:"POSTGRES_HOST,default=localhost"`
		Port     string `env:"POSTGRES_PORT,default=5432"`
		User     string `env:"POSTGRES_USER,default=postgres"`
		Password string `env:"POSTGRES_PASSWORD,default=postgres"`
		DB       string `env:"POSTGRES_DB,default=sfcollab"`
	}
	Mongo struct {
		URI      string `env:"MONGO_URI,default=mongodb://localhost:27017"`
		Database string `env:"MONGO_DB,default=sfcollab"`
	}

	JWTSecret          string   `env:"JWT_SECRET,required"`
	AccessTokenMinutes int      `env:"ACCESS_TOKEN_EXPIRE_MINUTES,default=1440"`
	EncryptKey         string   `env:"ENCRYPTION_KEY,required"`
	LegacyEncryptKeys  []string `env:"LEGACY_ENCRYPTION_KEYS"`

	CORSOrigins []string `env:"CORS_ORIGINS,default=http://localhost:3000,http://localhost:5173"`

	RedisURL     string   `env:"REDIS_URL"`
	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	KafkaTopic   string   `env:"KAFKA_TOPIC,default=messaging.events"`

	WS struct {
		SendRate   float64 `env:"WS_SEND_RATE,default=5"`
		SendBurst  int     `env:"WS_SEND_BURST,default=10"`
		SendBuffer int     `env:"WS_SEND_BUFFER,default=128"`
	}
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom processes the given lookuper; tests pass envconfig.MapLookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, cfg, l); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}

	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	switch cfg.StoreDriver {
	case DriverSQLite, DriverPostgres, DriverMongo:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.WS.SendBuffer <= 0 {
		return nil, fmt.Errorf("WS_SEND_BUFFER must be positive")
	}

	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

// PostgresURL assembles the DSN from the POSTGRES_* settings.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:     fmt.Sprintf("%s:%s", c.Postgres.Host, c.Postgres.Port),
		Path:     c.Postgres.DB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
