package config

const EnvPrefix = "SETTLEFLOW"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	ChannelDriverKafka  = "kafka"
	ChannelDriverPubSub = "pubsub"

	defaultSQLiteDSN = "file:settleflow.db?cache=shared"
)

const (
	EnvAppEnv   = "SETTLEFLOW_APP_ENV"
	EnvPort     = "SETTLEFLOW_APP_PORT"
	EnvLogLevel = "SETTLEFLOW_LOG_LEVEL"

	EnvDBDSN    = "SETTLEFLOW_DB_DSN"
	EnvDBDriver = "SETTLEFLOW_DB_DRIVER"
	EnvDBHost   = "SETTLEFLOW_DB_HOST"
	EnvDBUser   = "SETTLEFLOW_DB_USER"
	EnvDBName   = "SETTLEFLOW_DB_NAME"

	EnvRedisURL = "SETTLEFLOW_REDIS_URL"

	EnvGCPProjectID = "SETTLEFLOW_GCP_PROJECT_ID"

	EnvChannelDriver = "SETTLEFLOW_CHANNEL_DRIVER"
	EnvKafkaBrokers  = "SETTLEFLOW_KAFKA_BROKERS"
	EnvKafkaTopic    = "SETTLEFLOW_KAFKA_TOPIC"

	EnvSettlementFeeRate       = "SETTLEFLOW_SETTLEMENT_FEE_RATE"
	EnvSettlementFeeScale      = "SETTLEFLOW_SETTLEMENT_FEE_SCALE"
	EnvSettlementRetryInterval = "SETTLEFLOW_SETTLEMENT_RETRY_INTERVAL"
	EnvSettlementInitialDelay  = "SETTLEFLOW_SETTLEMENT_RETRY_INITIAL_DELAY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
