package config

// EnvPrefix is the envconfig prefix shared by every QLine environment variable.
const EnvPrefix = "QLINE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Service kinds selecting which binary surface a deployment runs.
const (
	ServiceKindAPI                = "api"
	ServiceKindOutboxPublisher    = "outbox-publisher"
	ServiceKindNotificationWorker = "notification-worker"
	ServiceKindCronWorker         = "cron-worker"
)

const (
	EnvAppEnv                 = "QLINE_APP_ENV"
	EnvPort                   = "QLINE_APP_PORT"
	EnvDBDSN                  = "QLINE_DB_DSN"
	EnvDBHost                 = "QLINE_DB_HOST"
	EnvDBUser                 = "QLINE_DB_USER"
	EnvDBName                 = "QLINE_DB_NAME"
	EnvRedisURL               = "QLINE_REDIS_URL"
	EnvJWTSecret              = "QLINE_JWT_SECRET"
	EnvJWTIssuer              = "QLINE_JWT_ISSUER"
	EnvJWTExpMins             = "QLINE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "QLINE_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "QLINE_GCP_PROJECT_ID"
	EnvPubSubDomainTopic      = "QLINE_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub        = "QLINE_PUBSUB_DOMAIN_SUBSCRIPTION"
	EnvPubSubNotifTopic       = "QLINE_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotifSub         = "QLINE_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
