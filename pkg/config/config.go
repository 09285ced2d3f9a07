package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	FeatureFlags FeatureFlagsConfig
	Cart         CartConfig
	Checkout     CheckoutConfig
	Reference    ReferenceConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Sendgrid     SendgridConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FLORIST_APP_ENV" required:"true"`
	Port         string `envconfig:"FLORIST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FLORIST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FLORIST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"FLORIST_DB_DSN"`

	LegacyHost     string `envconfig:"FLORIST_DB_HOST"`
	LegacyPort     int    `envconfig:"FLORIST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FLORIST_DB_USER"`
	LegacyPassword string `envconfig:"FLORIST_DB_PASSWORD"`
	LegacyName     string `envconfig:"FLORIST_DB_NAME"`
	LegacySSLMode  string `envconfig:"FLORIST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FLORIST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FLORIST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FLORIST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FLORIST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FLORIST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FLORIST_REDIS_ADDR"`
	Password     string        `envconfig:"FLORIST_REDIS_PASSWORD"`
	DB           int           `envconfig:"FLORIST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FLORIST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FLORIST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FLORIST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FLORIST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FLORIST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies admin tokens minted by the identity provider.
type JWTConfig struct {
	Secret    string `envconfig:"FLORIST_JWT_SECRET" required:"true"`
	Issuer    string `envconfig:"FLORIST_JWT_ISSUER" required:"true"`
	AdminRole string `envconfig:"FLORIST_JWT_ADMIN_ROLE" default:"admin"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"FLORIST_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FLORIST_AUTO_MIGRATE" default:"false"`
	Metrics     bool `envconfig:"FLORIST_METRICS_ENABLED" default:"true"`
}

type CartConfig struct {
	TTL time.Duration `envconfig:"FLORIST_CART_TTL" default:"720h"`
}

type CheckoutConfig struct {
	SessionTTL        time.Duration `envconfig:"FLORIST_CHECKOUT_SESSION_TTL" default:"2h"`
	SubmitWindow      time.Duration `envconfig:"FLORIST_CHECKOUT_SUBMIT_WINDOW" default:"1m"`
	SubmitLimitPerIP  int           `envconfig:"FLORIST_CHECKOUT_SUBMIT_LIMIT_PER_IP" default:"10"`
	SubmitIdempotency time.Duration `envconfig:"FLORIST_CHECKOUT_SUBMIT_IDEMPOTENCY_TTL" default:"168h"`
}

type ReferenceConfig struct {
	CacheTTL time.Duration `envconfig:"FLORIST_REFERENCE_CACHE_TTL" default:"5m"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"FLORIST_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FLORIST_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FLORIST_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FLORIST_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic               string `envconfig:"FLORIST_PUBSUB_ORDERS_TOPIC" default:"florist-order-events"`
	NotificationsSubscription string `envconfig:"FLORIST_PUBSUB_NOTIFICATIONS_SUBSCRIPTION" default:"florist-order-notifications"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FLORIST_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FLORIST_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FLORIST_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"FLORIST_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"FLORIST_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"FLORIST_SENDGRID_FROM_NAME" default:"Flower Shop"`
	ShopEmail   string `envconfig:"FLORIST_SHOP_EMAIL"`

	BreakerMaxFailures uint32        `envconfig:"FLORIST_SENDGRID_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"FLORIST_SENDGRID_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

// Enabled reports whether outbound mail has enough configuration to send.
func (s SendgridConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.DefaultFrom) != ""
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
