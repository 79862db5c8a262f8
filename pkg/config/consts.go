package config

const (
	// EnvPrefix is passed to envconfig; individual fields carry the full
	// variable name in their tags so the prefix stays empty here.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "RAFFLETRACK_APP_ENV"
	EnvPort     = "RAFFLETRACK_APP_PORT"
	EnvLogLevel = "RAFFLETRACK_LOG_LEVEL"

	EnvDBDSN  = "RAFFLETRACK_DB_DSN"
	EnvDBHost = "RAFFLETRACK_DB_HOST"
	EnvDBUser = "RAFFLETRACK_DB_USER"
	EnvDBName = "RAFFLETRACK_DB_NAME"

	EnvRedisURL = "RAFFLETRACK_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
