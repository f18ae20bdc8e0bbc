package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	OTP           OTPConfig
	Mail          MailConfig
	Checkout      CheckoutConfig
	IDs           IDsConfig
	Kafka         KafkaConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Sentry        SentryConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.Checkout.PromotionDiscountPercent < 0 || cfg.Checkout.PromotionDiscountPercent >= 100 {
		return nil, fmt.Errorf("%s must be within [0, 100)", EnvPromotionDiscountPercent)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"SOKOHUB_APP_ENV" required:"true"`
	Port         string   `envconfig:"SOKOHUB_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"SOKOHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"SOKOHUB_LOG_WARN_STACK" default:"false"`
	PublicURL    string   `envconfig:"SOKOHUB_PUBLIC_URL" default:"http://localhost:8080"`
	CORSOrigins  []string `envconfig:"SOKOHUB_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SOKOHUB_SERVICE_KIND" default:"api"`
	// MetricsAddr is where background workers expose /metrics. Empty disables it.
	MetricsAddr string `envconfig:"SOKOHUB_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"SOKOHUB_DB_DSN"`
	Driver string `envconfig:"SOKOHUB_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SOKOHUB_DB_HOST"`
	Port     int    `envconfig:"SOKOHUB_DB_PORT" default:"5432"`
	User     string `envconfig:"SOKOHUB_DB_USER"`
	Password string `envconfig:"SOKOHUB_DB_PASSWORD"`
	Name     string `envconfig:"SOKOHUB_DB_NAME"`
	SSLMode  string `envconfig:"SOKOHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOKOHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOKOHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOKOHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOKOHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SOKOHUB_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOKOHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SOKOHUB_REDIS_ADDR"`
	Password     string        `envconfig:"SOKOHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOKOHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOKOHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOKOHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOKOHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOKOHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOKOHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                   string `envconfig:"SOKOHUB_JWT_SECRET" required:"true"`
	Issuer                   string `envconfig:"SOKOHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes        int    `envconfig:"SOKOHUB_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes   int    `envconfig:"SOKOHUB_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
	LoginChallengeTTLMinutes int    `envconfig:"SOKOHUB_LOGIN_CHALLENGE_MINUTES" default:"5"`
}

func minutes(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Minute
}

func (j JWTConfig) AccessTokenTTL() time.Duration { return minutes(j.ExpirationMinutes) }

func (j JWTConfig) RefreshTokenTTL() time.Duration { return minutes(j.RefreshTokenTTLMinutes) }

// LoginChallengeTTL bounds how long the password step stays usable for OTP verification.
func (j JWTConfig) LoginChallengeTTL() time.Duration {
	if ttl := minutes(j.LoginChallengeTTLMinutes); ttl > 0 {
		return ttl
	}
	return 5 * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SOKOHUB_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SOKOHUB_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SOKOHUB_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SOKOHUB_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SOKOHUB_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SOKOHUB_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SOKOHUB_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SOKOHUB_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SOKOHUB_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SOKOHUB_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SOKOHUB_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	OTPWindow          time.Duration `envconfig:"SOKOHUB_AUTH_RATE_LIMIT_OTP_WINDOW" default:"10m"`
	OTPEmailLimit      int           `envconfig:"SOKOHUB_AUTH_RATE_LIMIT_OTP_EMAIL_LIMIT" default:"5"`
	OTPIPLimit         int           `envconfig:"SOKOHUB_AUTH_RATE_LIMIT_OTP_IP_LIMIT" default:"30"`
	OTPVerifyAttempts  int           `envconfig:"SOKOHUB_AUTH_OTP_VERIFY_ATTEMPTS" default:"5"`
}

type OTPConfig struct {
	WindowMinutes int    `envconfig:"SOKOHUB_OTP_WINDOW_MINUTES" default:"3"`
	Length        int    `envconfig:"SOKOHUB_OTP_LENGTH" default:"5"`
	VerifyURL     string `envconfig:"SOKOHUB_OTP_VERIFY_URL" default:"http://localhost:3000/auth/otp/verify"`
}

// Window returns the validity window for issued codes.
func (o OTPConfig) Window() time.Duration {
	if o.WindowMinutes <= 0 {
		return 3 * time.Minute
	}
	return time.Duration(o.WindowMinutes) * time.Minute
}

type MailConfig struct {
	Host     string `envconfig:"SOKOHUB_MAIL_HOST"`
	Port     int    `envconfig:"SOKOHUB_MAIL_PORT" default:"587"`
	Username string `envconfig:"SOKOHUB_MAIL_USERNAME"`
	Password string `envconfig:"SOKOHUB_MAIL_PASSWORD"`
	From     string `envconfig:"SOKOHUB_MAIL_FROM" default:"no-reply@sokohub.local"`

	SendTimeout time.Duration `envconfig:"SOKOHUB_MAIL_SEND_TIMEOUT" default:"15s"`
}

// Enabled reports whether an SMTP relay is configured.
func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != ""
}

type CheckoutConfig struct {
	PromotionDiscountPercent int64 `envconfig:"SOKOHUB_PROMOTION_DISCOUNT_PERCENT" default:"5"`
}

// PromotionRate converts the configured percent into a decimal multiplier.
func (c CheckoutConfig) PromotionRate() decimal.Decimal {
	return decimal.New(c.PromotionDiscountPercent, -2)
}

type IDsConfig struct {
	SnowflakeNode int64 `envconfig:"SOKOHUB_SNOWFLAKE_NODE" default:"1"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"SOKOHUB_KAFKA_BROKERS" default:"localhost:9092"`
	Topic        string        `envconfig:"SOKOHUB_KAFKA_TOPIC" default:"sokohub.domain-events"`
	WriteTimeout time.Duration `envconfig:"SOKOHUB_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SOKOHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SOKOHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SOKOHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"SOKOHUB_CRON_INTERVAL" default:"1h"`
	OTPRetention        time.Duration `envconfig:"SOKOHUB_CRON_OTP_RETENTION" default:"24h"`
	OutboxRetentionDays int           `envconfig:"SOKOHUB_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	NotificationDays    int           `envconfig:"SOKOHUB_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
}

type SentryConfig struct {
	DSN              string  `envconfig:"SOKOHUB_SENTRY_DSN"`
	TracesSampleRate float64 `envconfig:"SOKOHUB_SENTRY_TRACES_SAMPLE_RATE" default:"0.2"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SOKOHUB_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range legacyDBEnvVars {
		if values[env] == "" {
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
