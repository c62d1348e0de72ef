package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	OTP          OTPConfig
	RateLimit    RateLimitConfig
	Webhook      WebhookConfig
	Mail         MailConfig
	Telegram     TelegramConfig
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
	for _, proxy := range cfg.App.TrustedProxies {
		if err := validProxy(strings.TrimSpace(proxy)); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvTrustedProxies, err)
		}
	}
	if cfg.App.IsProd() {
		for _, origin := range cfg.App.CORSOrigins {
			if strings.TrimSpace(origin) == "*" {
				return nil, fmt.Errorf("%s must list explicit origins in %s", EnvCORSOrigins, AppEnvProd)
			}
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
	// TrustedProxies lists the load balancer IPs or CIDRs whose X-Forwarded-For
	// is believed. Empty means client addresses come from the TCP peer only.
	TrustedProxies []string `envconfig:"STOREFRONT_TRUSTED_PROXIES"`
}

func validProxy(raw string) error {
	if raw == "" {
		return nil
	}
	if strings.Contains(raw, "/") {
		_, err := netip.ParsePrefix(raw)
		return err
	}
	_, err := netip.ParseAddr(raw)
	return err
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn; zero disables it.
	SlowQuery time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"200ms"`
}

// IsSQLite reports whether the sqlite driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PasswordConfig holds the argon2id parameters used for one-way secrets (cancellation OTPs).
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOREFRONT_ARGON_MEMORY_KB" default:"19456"`
	ArgonTime        int `envconfig:"STOREFRONT_ARGON_TIME" default:"2"`
	ArgonParallelism int `envconfig:"STOREFRONT_ARGON_PARALLELISM" default:"1"`
	ArgonSaltLen     int `envconfig:"STOREFRONT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOREFRONT_ARGON_KEY_LEN" default:"32"`
}

type StripeConfig struct {
	APIKey string `envconfig:"STOREFRONT_STRIPE_API_KEY" required:"true"`
	Secret string `envconfig:"STOREFRONT_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env    string `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`
	// Timeout bounds each API call; MaxRetries applies to network failures only.
	Timeout    time.Duration `envconfig:"STOREFRONT_STRIPE_TIMEOUT" default:"20s"`
	MaxRetries int64         `envconfig:"STOREFRONT_STRIPE_MAX_RETRIES" default:"2"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	Currency             string        `envconfig:"STOREFRONT_CHECKOUT_CURRENCY" default:"eur"`
	MinChargeCents       int64         `envconfig:"STOREFRONT_CHECKOUT_MIN_CHARGE_CENTS" default:"50"`
	AmountToleranceCents int64         `envconfig:"STOREFRONT_CHECKOUT_AMOUNT_TOLERANCE_CENTS" default:"2"`
	DefaultCountry       string        `envconfig:"STOREFRONT_CHECKOUT_DEFAULT_COUNTRY" default:"MT"`
	StaffGraceWindow     time.Duration `envconfig:"STOREFRONT_CHECKOUT_STAFF_GRACE_WINDOW" default:"2h"`
	CancellationWindow   time.Duration `envconfig:"STOREFRONT_CHECKOUT_CANCELLATION_WINDOW" default:"2h"`
}

type OTPConfig struct {
	TTL            time.Duration `envconfig:"STOREFRONT_OTP_TTL" default:"10m"`
	ResendInterval time.Duration `envconfig:"STOREFRONT_OTP_RESEND_INTERVAL" default:"60s"`
	Digits         int           `envconfig:"STOREFRONT_OTP_DIGITS" default:"6"`
}

type RateLimitConfig struct {
	OrdersWindow   time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_ORDERS_WINDOW" default:"10m"`
	OrdersLimit    int           `envconfig:"STOREFRONT_RATE_LIMIT_ORDERS_LIMIT" default:"5"`
	PaymentsWindow time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_PAYMENTS_WINDOW" default:"15m"`
	PaymentsLimit  int           `envconfig:"STOREFRONT_RATE_LIMIT_PAYMENTS_LIMIT" default:"10"`
	GeneralWindow  time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_GENERAL_WINDOW" default:"15m"`
	GeneralLimit   int           `envconfig:"STOREFRONT_RATE_LIMIT_GENERAL_LIMIT" default:"100"`
}

type WebhookConfig struct {
	EventIdempotencyTTL time.Duration `envconfig:"STOREFRONT_WEBHOOK_EVENT_IDEMPOTENCY_TTL" default:"72h"`
	EventLease          time.Duration `envconfig:"STOREFRONT_WEBHOOK_EVENT_LEASE" default:"5m"`
}

type MailConfig struct {
	Host            string `envconfig:"STOREFRONT_SMTP_HOST" default:"smtp.gmail.com"`
	Port            int    `envconfig:"STOREFRONT_SMTP_PORT" default:"587"`
	User            string `envconfig:"STOREFRONT_SMTP_USER"`
	Password        string `envconfig:"STOREFRONT_SMTP_PASS"`
	From            string `envconfig:"STOREFRONT_SMTP_FROM"`
	OrderAlertEmail string `envconfig:"STOREFRONT_ORDER_ALERT_EMAIL"`
}

// Enabled reports whether SMTP credentials were supplied.
func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != "" && strings.TrimSpace(m.User) != ""
}

// Sender returns the From address, falling back to the SMTP user.
func (m MailConfig) Sender() string {
	if from := strings.TrimSpace(m.From); from != "" {
		return from
	}
	return strings.TrimSpace(m.User)
}

type TelegramConfig struct {
	BotToken string `envconfig:"STOREFRONT_TG_BOT_TOKEN"`
	ChatIDs  string `envconfig:"STOREFRONT_TG_CHAT_IDS"`
	BaseURL  string `envconfig:"STOREFRONT_TG_BASE_URL" default:"https://api.telegram.org"`
}

// ChatIDList splits the comma separated chat id list.
func (t TelegramConfig) ChatIDList() []string {
	out := []string{}
	for _, part := range strings.Split(t.ChatIDs, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, DBDriverSQLite)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
