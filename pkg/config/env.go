package config

// EnvPrefix namespaces every variable consumed by envconfig.
const EnvPrefix = "SOKOHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SOKOHUB_APP_ENV"
	EnvPort     = "SOKOHUB_APP_PORT"
	EnvLogLvl   = "SOKOHUB_LOG_LEVEL"
	EnvDBDSN    = "SOKOHUB_DB_DSN"
	EnvDBHost   = "SOKOHUB_DB_HOST"
	EnvDBUser   = "SOKOHUB_DB_USER"
	EnvDBName   = "SOKOHUB_DB_NAME"
	EnvRedisURL = "SOKOHUB_REDIS_URL"

	EnvJWTSecret              = "SOKOHUB_JWT_SECRET"
	EnvJWTIssuer              = "SOKOHUB_JWT_ISSUER"
	EnvJWTExpMins             = "SOKOHUB_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "SOKOHUB_REFRESH_TOKEN_TTL_MINUTES"
	EnvLoginChallengeMinutes  = "SOKOHUB_LOGIN_CHALLENGE_MINUTES"

	EnvOTPWindowMinutes = "SOKOHUB_OTP_WINDOW_MINUTES"
	EnvOTPVerifyURL     = "SOKOHUB_OTP_VERIFY_URL"

	EnvMailHost = "SOKOHUB_MAIL_HOST"
	EnvMailFrom = "SOKOHUB_MAIL_FROM"

	EnvPromotionDiscountPercent = "SOKOHUB_PROMOTION_DISCOUNT_PERCENT"

	EnvKafkaBrokers = "SOKOHUB_KAFKA_BROKERS"
	EnvKafkaTopic   = "SOKOHUB_KAFKA_TOPIC"

	EnvSentryDSN = "SOKOHUB_SENTRY_DSN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
