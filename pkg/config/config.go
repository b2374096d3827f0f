package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Checkout     CheckoutConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Gateway.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STYLEHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"STYLEHUB_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STYLEHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STYLEHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STYLEHUB_DB_DSN"`
	Driver string `envconfig:"STYLEHUB_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STYLEHUB_DB_HOST"`
	Port     int    `envconfig:"STYLEHUB_DB_PORT" default:"5432"`
	User     string `envconfig:"STYLEHUB_DB_USER"`
	Password string `envconfig:"STYLEHUB_DB_PASSWORD"`
	Name     string `envconfig:"STYLEHUB_DB_NAME"`
	SSLMode  string `envconfig:"STYLEHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STYLEHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STYLEHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STYLEHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STYLEHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STYLEHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STYLEHUB_REDIS_ADDR"`
	Password     string        `envconfig:"STYLEHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"STYLEHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STYLEHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STYLEHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STYLEHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STYLEHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STYLEHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig holds defaults for the payment gateway integration. Merchant
// code, secret and URLs can be overridden at runtime through the settings
// store; the correlation TTL must outlive the payment link expiry.
type GatewayConfig struct {
	MerchantCode   string        `envconfig:"STYLEHUB_GATEWAY_MERCHANT_CODE"`
	Secret         string        `envconfig:"STYLEHUB_GATEWAY_SECRET"`
	PayURL         string        `envconfig:"STYLEHUB_GATEWAY_PAY_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL      string        `envconfig:"STYLEHUB_GATEWAY_RETURN_URL"`
	FrontendURL    string        `envconfig:"STYLEHUB_FRONTEND_URL" default:"http://localhost:3000"`
	CurrencyCode   string        `envconfig:"STYLEHUB_GATEWAY_CURRENCY" default:"VND"`
	Locale         string        `envconfig:"STYLEHUB_GATEWAY_LOCALE" default:"vn"`
	Timezone       string        `envconfig:"STYLEHUB_GATEWAY_TIMEZONE" default:"Asia/Ho_Chi_Minh"`
	LinkExpiry     time.Duration `envconfig:"STYLEHUB_GATEWAY_LINK_EXPIRY" default:"60m"`
	CorrelationTTL time.Duration `envconfig:"STYLEHUB_GATEWAY_CORRELATION_TTL" default:"75m"`
}

func (g GatewayConfig) validate() error {
	if g.CorrelationTTL < g.LinkExpiry {
		return fmt.Errorf("correlation TTL %s must be >= payment link expiry %s", g.CorrelationTTL, g.LinkExpiry)
	}
	return nil
}

type CheckoutConfig struct {
	ShippingCost string `envconfig:"STYLEHUB_CHECKOUT_SHIPPING_COST" default:"10"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STYLEHUB_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STYLEHUB_OUTBOX_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STYLEHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STYLEHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STYLEHUB_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
