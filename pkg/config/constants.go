package config

const (
	EnvPrefix = "STYLEHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "STYLEHUB_DB_DSN"
	EnvDBHost = "STYLEHUB_DB_HOST"
	EnvDBUser = "STYLEHUB_DB_USER"
	EnvDBName = "STYLEHUB_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
