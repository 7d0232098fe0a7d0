package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	FCM           FCMConfig
	Outbox        OutboxConfig
	Queue         QueueConfig
	Cron          CronConfig
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
	Env          string `envconfig:"QLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"QLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"QLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"QLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"QLINE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"QLINE_DB_DSN"`
	Driver string `envconfig:"QLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"QLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"QLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"QLINE_DB_USER"`
	LegacyPassword string `envconfig:"QLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"QLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"QLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"QLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"QLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"QLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"QLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"QLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"QLINE_REDIS_ADDR"`
	Password     string        `envconfig:"QLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"QLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"QLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"QLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"QLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"QLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"QLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"QLINE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"QLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"QLINE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"QLINE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"QLINE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"QLINE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"QLINE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"QLINE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"QLINE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"QLINE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"QLINE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"QLINE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"QLINE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"QLINE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"QLINE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"QLINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"QLINE_AUTO_MIGRATE" default:"false"`
	PushEnabled bool `envconfig:"QLINE_FEATURE_PUSH_ENABLED" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"QLINE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"QLINE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"QLINE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"QLINE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"QLINE_PUBSUB_DOMAIN_TOPIC" default:"ql-domain-events"`
	DomainSubscription       string `envconfig:"QLINE_PUBSUB_DOMAIN_SUBSCRIPTION"`
	NotificationTopic        string `envconfig:"QLINE_PUBSUB_NOTIFICATION_TOPIC" default:"ql-notification-events"`
	NotificationSubscription string `envconfig:"QLINE_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type FCMConfig struct {
	CredentialsFile string `envconfig:"QLINE_FCM_CREDENTIALS_FILE"`
	DryRun          bool   `envconfig:"QLINE_FCM_DRY_RUN" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"QLINE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"QLINE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"QLINE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// QueueConfig carries ledger-wide defaults applied when a business leaves a
// knob unset.
type QueueConfig struct {
	DefaultMaxQueueSize       int `envconfig:"QLINE_QUEUE_DEFAULT_MAX_SIZE" default:"50"`
	DefaultMinutesPerCustomer int `envconfig:"QLINE_QUEUE_DEFAULT_MINUTES_PER_CUSTOMER" default:"5"`
}

type CronConfig struct {
	ReconcileInterval           time.Duration `envconfig:"QLINE_CRON_RECONCILE_INTERVAL" default:"5m"`
	QueueLengthResyncInterval   time.Duration `envconfig:"QLINE_CRON_QUEUE_LENGTH_RESYNC_INTERVAL" default:"15m"`
	NotificationRetention       time.Duration `envconfig:"QLINE_CRON_NOTIFICATION_RETENTION" default:"2160h"`
	NotificationCleanupInterval time.Duration `envconfig:"QLINE_CRON_NOTIFICATION_CLEANUP_INTERVAL" default:"24h"`
	OutboxRetention             time.Duration `envconfig:"QLINE_CRON_OUTBOX_RETENTION" default:"168h"`
	OutboxRetentionInterval     time.Duration `envconfig:"QLINE_CRON_OUTBOX_RETENTION_INTERVAL" default:"6h"`
	LockTTL                     time.Duration `envconfig:"QLINE_CRON_LOCK_TTL" default:"10m"`
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
