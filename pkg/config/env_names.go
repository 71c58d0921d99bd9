package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "MKULIMA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "MKULIMA_APP_ENV"
	EnvPort     = "MKULIMA_APP_PORT"
	EnvDBDSN    = "MKULIMA_DB_DSN"
	EnvDBHost   = "MKULIMA_DB_HOST"
	EnvDBUser   = "MKULIMA_DB_USER"
	EnvDBName   = "MKULIMA_DB_NAME"
	EnvRedisURL = "MKULIMA_REDIS_URL"

	EnvGatewayBaseURL = "MKULIMA_GATEWAY_BASE_URL"
	EnvGatewayAPIKey  = "MKULIMA_GATEWAY_API_KEY"
	EnvGatewaySecret  = "MKULIMA_GATEWAY_SECRET"
	EnvGatewayClient  = "MKULIMA_GATEWAY_CLIENT_ID"

	EnvSyncAPIBaseURL = "MKULIMA_SYNC_API_BASE_URL"
	EnvSyncQueuePath  = "MKULIMA_SYNC_QUEUE_PATH"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
