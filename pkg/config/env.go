package config

// EnvPrefix is the envconfig prefix shared by every variable.
const EnvPrefix = "GEARSHARE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "GEARSHARE_APP_ENV"
	EnvPort     = "GEARSHARE_APP_PORT"
	EnvLogLevel = "GEARSHARE_LOG_LEVEL"

	EnvDBDSN    = "GEARSHARE_DB_DSN"
	EnvDBDriver = "GEARSHARE_DB_DRIVER"
	EnvDBHost   = "GEARSHARE_DB_HOST"
	EnvDBUser   = "GEARSHARE_DB_USER"
	EnvDBName   = "GEARSHARE_DB_NAME"

	EnvRedisURL = "GEARSHARE_REDIS_URL"

	EnvJWTSecret = "GEARSHARE_JWT_SECRET"
	EnvJWTIssuer = "GEARSHARE_JWT_ISSUER"

	EnvGCPProjectID = "GEARSHARE_GCP_PROJECT_ID"

	EnvPubSubDomainTopic    = "GEARSHARE_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubAnalyticsTopic = "GEARSHARE_PUBSUB_ANALYTICS_TOPIC"

	EnvBookingTimezone          = "GEARSHARE_BOOKING_TIMEZONE"
	EnvBookingCommissionRate    = "GEARSHARE_BOOKING_COMMISSION_RATE"
	EnvBookingPlatformAccountID = "GEARSHARE_BOOKING_PLATFORM_ACCOUNT_ID"

	EnvNotificationWorkers = "GEARSHARE_NOTIFICATION_WORKERS"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
