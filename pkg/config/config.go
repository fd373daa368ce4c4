package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Password  PasswordConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Publisher PublisherConfig
	Sweeper   SweeperConfig
	Flags     FeatureFlagsConfig
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
	Env          string `envconfig:"TEAMUP_APP_ENV" required:"true"`
	Port         string `envconfig:"TEAMUP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TEAMUP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TEAMUP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TEAMUP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"TEAMUP_DB_DSN"`

	LegacyHost     string `envconfig:"TEAMUP_DB_HOST"`
	LegacyPort     int    `envconfig:"TEAMUP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TEAMUP_DB_USER"`
	LegacyPassword string `envconfig:"TEAMUP_DB_PASSWORD"`
	LegacyName     string `envconfig:"TEAMUP_DB_NAME"`
	LegacySSLMode  string `envconfig:"TEAMUP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TEAMUP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TEAMUP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TEAMUP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TEAMUP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TEAMUP_REDIS_URL" required:"true"`
	Password     string        `envconfig:"TEAMUP_REDIS_PASSWORD"`
	DB           int           `envconfig:"TEAMUP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TEAMUP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TEAMUP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TEAMUP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TEAMUP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TEAMUP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TEAMUP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TEAMUP_JWT_ISSUER" default:"teamup-auth"`
	ExpirationMinutes int    `envconfig:"TEAMUP_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TEAMUP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TEAMUP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TEAMUP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TEAMUP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TEAMUP_ARGON_KEY_LEN" default:"32"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TEAMUP_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TEAMUP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TEAMUP_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig names the two provisioning topics and the per-service
// consumer-group subscriptions. Topic names come from the environment, never
// from code.
type PubSubConfig struct {
	PlayerTopic        string `envconfig:"TEAMUP_PUBSUB_PLAYER_TOPIC" default:"player-created-topic"`
	PlayerSubscription string `envconfig:"TEAMUP_PUBSUB_PLAYER_SUBSCRIPTION" default:"player-service-group"`
	VenueTopic         string `envconfig:"TEAMUP_PUBSUB_VENUE_TOPIC" default:"venue-created-topic"`
	VenueSubscription  string `envconfig:"TEAMUP_PUBSUB_VENUE_SUBSCRIPTION" default:"venue-service-group"`
}

// PublisherConfig bounds the hot-path send.
type PublisherConfig struct {
	Timeout time.Duration `envconfig:"TEAMUP_PUBLISH_TIMEOUT" default:"8s"`
}

// SweeperConfig drives the pending-event resend loop.
type SweeperConfig struct {
	Interval      time.Duration `envconfig:"TEAMUP_SWEEPER_INTERVAL" default:"60s"`
	BatchSize     int           `envconfig:"TEAMUP_SWEEPER_BATCH_SIZE" default:"100"`
	MaxAttempts   int           `envconfig:"TEAMUP_SWEEPER_MAX_ATTEMPTS" default:"10"`
	LockTTL       time.Duration `envconfig:"TEAMUP_SWEEPER_LOCK_TTL" default:"10m"`
	RetentionDays int           `envconfig:"TEAMUP_POISON_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TEAMUP_AUTO_MIGRATE" default:"false"`
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
