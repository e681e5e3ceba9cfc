// Package config loads lane settings from the environment. Every variable may
// be given with the LANECALC_ prefix or bare.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/lanecalc/pkg/enums"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Engine       EngineConfig
	Gateway      GatewayConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

// Load parses the environment, derives the database DSN and validates every
// section. All validation problems are reported together.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	err := multierr.Combine(
		cfg.DB.resolveDSN(cfg.FeatureFlags.UseSQLite),
		cfg.Engine.validate(),
		cfg.Gateway.validate(),
		cfg.Outbox.validate(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"APP_ENV" required:"true"`
	Port         string `envconfig:"APP_PORT" default:"8080"`
	LaneID       string `envconfig:"LANE_ID" required:"true"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DB_DSN"`
	Driver string `envconfig:"DB_DRIVER" default:"postgres"`

	// Parts used to build a Postgres DSN when DB_DSN is unset.
	Host     string `envconfig:"DB_HOST"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL" required:"true"`
	Address      string        `envconfig:"REDIS_ADDR"`
	Password     string        `envconfig:"REDIS_PASSWORD"`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// EngineConfig carries the store level calculation settings.
type EngineConfig struct {
	ServiceFee               decimal.Decimal    `envconfig:"ENGINE_SERVICE_FEE" default:"0"`
	RefundPolicy             enums.RefundPolicy `envconfig:"ENGINE_REFUND_POLICY" default:"cash"`
	ApprovalPercentThreshold decimal.Decimal    `envconfig:"ENGINE_APPROVAL_PERCENT_THRESHOLD" default:"0"`
	VoidRequiresApproval     bool               `envconfig:"ENGINE_VOID_REQUIRES_APPROVAL" default:"true"`
	MaxUnitQuantity          decimal.Decimal    `envconfig:"ENGINE_MAX_UNIT_QUANTITY" default:"99"`
	MaxWeighedQuantity       decimal.Decimal    `envconfig:"ENGINE_MAX_WEIGHED_QUANTITY" default:"30"`
	HoldTTL                  time.Duration      `envconfig:"ENGINE_HOLD_TTL" default:"24h"`
	CatalogCacheTTL          time.Duration      `envconfig:"ENGINE_CATALOG_CACHE_TTL" default:"5m"`
}

func (e EngineConfig) validate() error {
	var err error
	if !e.RefundPolicy.IsValid() {
		err = multierr.Append(err, fmt.Errorf("invalid %s %q", EnvEngineRefundPolicy, e.RefundPolicy))
	}
	if e.ServiceFee.IsNegative() {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvEngineServiceFee))
	}
	if e.ApprovalPercentThreshold.IsNegative() || e.ApprovalPercentThreshold.GreaterThan(decimal.NewFromInt(100)) {
		err = multierr.Append(err, fmt.Errorf("%s must be between 0 and 100", EnvEngineApprovalThreshold))
	}
	if !e.MaxUnitQuantity.IsPositive() || !e.MaxWeighedQuantity.IsPositive() {
		err = multierr.Append(err, errors.New("quantity limits must be positive"))
	}
	return err
}

// GatewayConfig points at the store approval service and the lane payment
// terminal.
type GatewayConfig struct {
	ApprovalURL string        `envconfig:"APPROVAL_URL" required:"true"`
	TerminalURL string        `envconfig:"TERMINAL_URL" required:"true"`
	Timeout     time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"90s"`
}

func (g GatewayConfig) validate() error {
	var err error
	for env, raw := range map[string]string{EnvApprovalURL: g.ApprovalURL, EnvTerminalURL: g.TerminalURL} {
		if u, perr := url.ParseRequestURI(raw); perr != nil || u.Host == "" {
			err = multierr.Append(err, fmt.Errorf("%s must be an absolute url, got %q", env, raw))
		}
	}
	if g.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvGatewayTimeout))
	}
	return err
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"EVENTING_IDEMPOTENCY_TTL" default:"24h"`
}

// GCPConfig names the project of the sync topic. Credentials come from
// the application default chain.
type GCPConfig struct {
	ProjectID string `envconfig:"GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	SyncTopic   string `envconfig:"PUBSUB_SYNC_TOPIC" default:"lanecalc-transactions"`
	OrderByLane bool   `envconfig:"PUBSUB_ORDER_BY_LANE" default:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (o OutboxConfig) validate() error {
	if o.BatchSize < 0 || o.MaxAttempts < 0 || o.PollIntervalMS < 0 {
		return errors.New("outbox batch size, attempts and poll interval must not be negative")
	}
	return nil
}

// PollInterval returns the publisher poll interval.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

// resolveDSN fills DSN from the DB_HOST/DB_USER/DB_NAME parts, or the local
// SQLite file when the lane runs on SQLite.
func (db *DBConfig) resolveDSN(useSQLite bool) error {
	switch {
	case db.DSN != "":
		return nil
	case useSQLite:
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.User)
	if db.Password != "" {
		user = url.UserPassword(db.User, db.Password)
	}
	u := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}
