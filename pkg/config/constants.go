package config

// EnvPrefix namespaces every setting; envconfig also accepts the bare name.
const EnvPrefix = "LANECALC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DefaultSQLiteDSN = "file:lanecalc.db?_foreign_keys=on"
)

const (
	EnvAppEnv = EnvPrefix + "_APP_ENV"
	EnvPort   = EnvPrefix + "_APP_PORT"
	EnvLaneID = EnvPrefix + "_LANE_ID"

	EnvDBDSN  = EnvPrefix + "_DB_DSN"
	EnvDBHost = EnvPrefix + "_DB_HOST"
	EnvDBUser = EnvPrefix + "_DB_USER"
	EnvDBName = EnvPrefix + "_DB_NAME"

	EnvRedisURL = EnvPrefix + "_REDIS_URL"

	EnvEngineServiceFee        = EnvPrefix + "_ENGINE_SERVICE_FEE"
	EnvEngineRefundPolicy      = EnvPrefix + "_ENGINE_REFUND_POLICY"
	EnvEngineApprovalThreshold = EnvPrefix + "_ENGINE_APPROVAL_PERCENT_THRESHOLD"
	EnvEngineHoldTTL           = EnvPrefix + "_ENGINE_HOLD_TTL"

	EnvApprovalURL    = EnvPrefix + "_APPROVAL_URL"
	EnvTerminalURL    = EnvPrefix + "_TERMINAL_URL"
	EnvGatewayTimeout = EnvPrefix + "_GATEWAY_TIMEOUT"

	EnvUseSQLite = EnvPrefix + "_USE_SQLITE"
)
