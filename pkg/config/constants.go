package config

// EnvPrefix is the envconfig prefix shared by every TeamUp binary.
const EnvPrefix = "TEAMUP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "TEAMUP_DB_DSN"
	EnvDBHost = "TEAMUP_DB_HOST"
	EnvDBUser = "TEAMUP_DB_USER"
	EnvDBName = "TEAMUP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
