package config

const (
	EnvPrefix = "POS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "POS_APP_ENV"
	EnvPort      = "POS_APP_PORT"
	EnvDBDSN     = "POS_DB_DSN"
	EnvDBHost    = "POS_DB_HOST"
	EnvDBUser    = "POS_DB_USER"
	EnvDBName    = "POS_DB_NAME"
	EnvRedisURL  = "POS_REDIS_URL"
	EnvRedisAddr = "POS_REDIS_ADDR"
	EnvUseSQLite = "POS_USE_SQLITE"

	EnvReceiptPrinterURL = "POS_RECEIPT_PRINTER_URL"
	EnvPubSubSalesTopic  = "POS_PUBSUB_SALES_TOPIC"
	EnvGCPProjectID      = "POS_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
