package config

// EnvPrefix scopes every variable this service reads.
const EnvPrefix = "FLORIST"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "FLORIST_APP_ENV"
	EnvPort     = "FLORIST_APP_PORT"
	EnvLogLevel = "FLORIST_LOG_LEVEL"

	EnvDBDSN  = "FLORIST_DB_DSN"
	EnvDBHost = "FLORIST_DB_HOST"
	EnvDBPort = "FLORIST_DB_PORT"
	EnvDBUser = "FLORIST_DB_USER"
	EnvDBPass = "FLORIST_DB_PASSWORD"
	EnvDBName = "FLORIST_DB_NAME"

	EnvRedisURL = "FLORIST_REDIS_URL"

	EnvJWTSecret = "FLORIST_JWT_SECRET"
	EnvJWTIssuer = "FLORIST_JWT_ISSUER"

	EnvCORSOrigins = "FLORIST_CORS_ALLOWED_ORIGINS"
	EnvCartTTL     = "FLORIST_CART_TTL"
	EnvSessionTTL  = "FLORIST_CHECKOUT_SESSION_TTL"

	EnvGCPProjectID       = "FLORIST_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic  = "FLORIST_PUBSUB_ORDERS_TOPIC"
	EnvPubSubNotifySub    = "FLORIST_PUBSUB_NOTIFICATIONS_SUBSCRIPTION"
	EnvSendgridAPIKey     = "FLORIST_SENDGRID_API_KEY"
	EnvSendgridFrom       = "FLORIST_SENDGRID_FROM_EMAIL"
	EnvShopEmail          = "FLORIST_SHOP_EMAIL"
	EnvOutboxMaxAttempts  = "FLORIST_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxBatchSize    = "FLORIST_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvReferenceCacheTTL  = "FLORIST_REFERENCE_CACHE_TTL"
	EnvFeatureAutoMigrate = "FLORIST_AUTO_MIGRATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
