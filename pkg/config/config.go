package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Channel      ChannelConfig
	Settlement   SettlementConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Channel.validate(cfg.GCP); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SETTLEFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"SETTLEFLOW_APP_PORT" required:"true"`
	MetricsPort  string `envconfig:"SETTLEFLOW_METRICS_PORT" default:"9090"`
	LogLevel     string `envconfig:"SETTLEFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SETTLEFLOW_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SETTLEFLOW_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"SETTLEFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SETTLEFLOW_DB_DSN"`
	Driver string `envconfig:"SETTLEFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SETTLEFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"SETTLEFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SETTLEFLOW_DB_USER"`
	LegacyPassword string `envconfig:"SETTLEFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"SETTLEFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"SETTLEFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SETTLEFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SETTLEFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SETTLEFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SETTLEFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SETTLEFLOW_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// IsSQLite reports whether the sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"SETTLEFLOW_REDIS_URL" default:"redis://localhost:6379/0"`
	Address      string        `envconfig:"SETTLEFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"SETTLEFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"SETTLEFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SETTLEFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SETTLEFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SETTLEFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SETTLEFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SETTLEFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SETTLEFLOW_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SETTLEFLOW_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SETTLEFLOW_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"SETTLEFLOW_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"SETTLEFLOW_PUBSUB_ORDERS_TOPIC" default:"order-create-topic"`
	OrdersSubscription string `envconfig:"SETTLEFLOW_PUBSUB_ORDERS_SUBSCRIPTION" default:"settlement-group"`
	EmulatorHost       string `envconfig:"SETTLEFLOW_PUBSUB_EMULATOR_HOST"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"SETTLEFLOW_KAFKA_BROKERS" default:"localhost:9092"`
	Topic        string        `envconfig:"SETTLEFLOW_KAFKA_TOPIC" default:"order-create-topic"`
	GroupID      string        `envconfig:"SETTLEFLOW_KAFKA_GROUP_ID" default:"settlement-group"`
	MinBytes     int           `envconfig:"SETTLEFLOW_KAFKA_MIN_BYTES" default:"1"`
	MaxBytes     int           `envconfig:"SETTLEFLOW_KAFKA_MAX_BYTES" default:"10000000"`
	WriteTimeout time.Duration `envconfig:"SETTLEFLOW_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

type ChannelConfig struct {
	Driver string `envconfig:"SETTLEFLOW_CHANNEL_DRIVER" default:"kafka"`
}

func (c ChannelConfig) validate(gcp GCPConfig) error {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case ChannelDriverKafka:
		return nil
	case ChannelDriverPubSub:
		if strings.TrimSpace(gcp.ProjectID) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvGCPProjectID, EnvChannelDriver, ChannelDriverPubSub)
		}
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvChannelDriver, c.Driver)
	}
}

// SettlementConfig carries the knobs read by the order publisher, the retry
// sweeper and the settlement consumer.
type SettlementConfig struct {
	FeeRate        decimal.Decimal `envconfig:"SETTLEFLOW_SETTLEMENT_FEE_RATE" default:"0.03"`
	FeeScale       int32           `envconfig:"SETTLEFLOW_SETTLEMENT_FEE_SCALE" default:"-1"`
	RetryInterval  time.Duration   `envconfig:"SETTLEFLOW_SETTLEMENT_RETRY_INTERVAL" default:"1m"`
	InitialDelay   time.Duration   `envconfig:"SETTLEFLOW_SETTLEMENT_RETRY_INITIAL_DELAY" default:"10s"`
	PublishTimeout time.Duration   `envconfig:"SETTLEFLOW_SETTLEMENT_PUBLISH_TIMEOUT" default:"10s"`
	StoreTimeout   time.Duration   `envconfig:"SETTLEFLOW_SETTLEMENT_STORE_TIMEOUT" default:"5s"`
	CacheTTL       time.Duration   `envconfig:"SETTLEFLOW_SETTLEMENT_CACHE_TTL" default:"10m"`
}

func (s SettlementConfig) validate() error {
	if s.FeeRate.IsNegative() || s.FeeRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be within [0, 1], got %s", EnvSettlementFeeRate, s.FeeRate)
	}
	if s.RetryInterval <= 0 {
		return fmt.Errorf("%s must be positive", EnvSettlementRetryInterval)
	}
	if s.InitialDelay < 0 {
		return fmt.Errorf("%s must not be negative", EnvSettlementInitialDelay)
	}
	return nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
