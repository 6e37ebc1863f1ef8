package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "shoplink"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Gateway GatewayConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPLINK_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"SHOPLINK_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPLINK_DB_DSN"`
	Driver string `envconfig:"SHOPLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPLINK_DB_USER"`
	LegacyPassword string `envconfig:"SHOPLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("database DSN or host/user/name are required")
	}
	userInfo := url.User(d.LegacyUser)
	if d.LegacyPassword != "" {
		userInfo = url.UserPassword(d.LegacyUser, d.LegacyPassword)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", d.LegacyHost, d.LegacyPort),
		Path:     "/" + d.LegacyName,
		RawQuery: "sslmode=" + d.LegacySSLMode,
	}
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPLINK_REDIS_URL"`
	Address      string        `envconfig:"SHOPLINK_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig tunes the simulated payment gateway. Settlement is instant;
// the latency knob only exists so dev environments can mimic a slow PSP.
type GatewayConfig struct {
	SimulatedLatency time.Duration `envconfig:"SHOPLINK_GATEWAY_SIMULATED_LATENCY" default:"0s"`
	FailCharges      bool          `envconfig:"SHOPLINK_GATEWAY_FAIL_CHARGES" default:"false"`
}
