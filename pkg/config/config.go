package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	RateLimit     RateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Booking       BookingConfig
	Notifications NotificationsConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.Booking.Location(); err != nil {
		return fmt.Errorf("%s: %w", EnvBookingTimezone, err)
	}
	if _, err := c.Booking.Rate(); err != nil {
		return fmt.Errorf("%s: %w", EnvBookingCommissionRate, err)
	}
	if _, err := c.Booking.PlatformAccount(); err != nil {
		return fmt.Errorf("%s: %w", EnvBookingPlatformAccountID, err)
	}
	if c.Notifications.Workers <= 0 {
		return fmt.Errorf("%s must be positive", EnvNotificationWorkers)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"GEARSHARE_APP_ENV" required:"true"`
	Port         string `envconfig:"GEARSHARE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GEARSHARE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GEARSHARE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"GEARSHARE_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

// ConsoleLogs reports whether logs should be rendered for a terminal.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(a.LogFormat, "console")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GEARSHARE_SERVICE_KIND" default:"api"`
	// MetricsAddr exposes /metrics from the background processes; empty disables it.
	MetricsAddr string `envconfig:"GEARSHARE_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"GEARSHARE_DB_DSN"`
	Driver string `envconfig:"GEARSHARE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"GEARSHARE_DB_HOST"`
	Port     int    `envconfig:"GEARSHARE_DB_PORT" default:"5432"`
	User     string `envconfig:"GEARSHARE_DB_USER"`
	Password string `envconfig:"GEARSHARE_DB_PASSWORD"`
	Name     string `envconfig:"GEARSHARE_DB_NAME"`
	SSLMode  string `envconfig:"GEARSHARE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GEARSHARE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GEARSHARE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GEARSHARE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GEARSHARE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the store runs on the embedded SQLite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"GEARSHARE_REDIS_URL"`
	Address      string        `envconfig:"GEARSHARE_REDIS_ADDR"`
	Password     string        `envconfig:"GEARSHARE_REDIS_PASSWORD"`
	DB           int           `envconfig:"GEARSHARE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GEARSHARE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GEARSHARE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GEARSHARE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GEARSHARE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GEARSHARE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GEARSHARE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GEARSHARE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GEARSHARE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"GEARSHARE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// RateLimitConfig throttles booking creation per actor.
type RateLimitConfig struct {
	BookingWindow time.Duration `envconfig:"GEARSHARE_RATE_LIMIT_BOOKING_WINDOW" default:"1m"`
	BookingLimit  int           `envconfig:"GEARSHARE_RATE_LIMIT_BOOKING_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate         bool `envconfig:"GEARSHARE_AUTO_MIGRATE" default:"false"`
	InlineNotifications bool `envconfig:"GEARSHARE_INLINE_NOTIFICATIONS" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"GEARSHARE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GEARSHARE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GEARSHARE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GEARSHARE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"GEARSHARE_PUBSUB_DOMAIN_TOPIC" default:"gs-domain-events"`
	NotificationSubscription string `envconfig:"GEARSHARE_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"gs-notifications"`
	AnalyticsTopic           string `envconfig:"GEARSHARE_PUBSUB_ANALYTICS_TOPIC"`
	AnalyticsSubscription    string `envconfig:"GEARSHARE_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"gs-analytics"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"GEARSHARE_BIGQUERY_DATASET" default:"gearshare"`
	EventsTable string `envconfig:"GEARSHARE_BIGQUERY_EVENTS_TABLE" default:"booking_events"`
	BatchSize   int    `envconfig:"GEARSHARE_BIGQUERY_BATCH_SIZE" default:"1"`
	// MaxBytesBilled caps dashboard queries; zero leaves the project default.
	MaxBytesBilled int64 `envconfig:"GEARSHARE_BIGQUERY_MAX_BYTES_BILLED" default:"1073741824"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GEARSHARE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GEARSHARE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GEARSHARE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"GEARSHARE_OUTBOX_RETENTION_DAYS" default:"30"`
}

// BookingConfig carries the lifecycle engine settings.
type BookingConfig struct {
	Timezone          string `envconfig:"GEARSHARE_BOOKING_TIMEZONE" default:"UTC"`
	CommissionRate    string `envconfig:"GEARSHARE_BOOKING_COMMISSION_RATE" default:"0.10"`
	PlatformAccountID string `envconfig:"GEARSHARE_BOOKING_PLATFORM_ACCOUNT_ID" default:"00000000-0000-0000-0000-0000000000fe"`
	ExpiryBatchSize   int    `envconfig:"GEARSHARE_BOOKING_EXPIRY_BATCH_SIZE" default:"100"`
}

// Location resolves the reference timezone for calendar-date guards.
func (b BookingConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(b.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// Rate parses the default commission rate, which must lie in [0, 1].
func (b BookingConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(b.CommissionRate))
	if err != nil {
		return decimal.Zero, err
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("commission rate %s outside [0, 1]", rate)
	}
	return rate, nil
}

func (b BookingConfig) PlatformAccount() (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(b.PlatformAccountID))
}

type NotificationsConfig struct {
	QueueSize     int `envconfig:"GEARSHARE_NOTIFICATION_QUEUE_SIZE" default:"256"`
	Workers       int `envconfig:"GEARSHARE_NOTIFICATION_WORKERS" default:"2"`
	RetentionDays int `envconfig:"GEARSHARE_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Schedule string        `envconfig:"GEARSHARE_CRON_SCHEDULE" default:"@every 1h"`
	LockTTL  time.Duration `envconfig:"GEARSHARE_CRON_LOCK_TTL" default:"15m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, DriverSQLite)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
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
