package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Store     StoreSettings     `mapstructure:"store"`
	Mongo     MongoSettings     `mapstructure:"mongo"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Security  SecuritySettings  `mapstructure:"security"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Lockout   LockoutSettings   `mapstructure:"lockout"`
	OTP       OTPSettings       `mapstructure:"otp"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	SMTP      SMTPSettings      `mapstructure:"smtp"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name        string `mapstructure:"name"`
	Env         string `mapstructure:"env"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	FrontendURL string `mapstructure:"frontend_url"`
	BodyLimit   int64  `mapstructure:"body_limit"` // bytes
}

// IsProduction reports whether internal error details must be hidden from clients.
func (a AppSettings) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// StoreSettings selects the user store backend: mongo, postgres or memory.
type StoreSettings struct {
	Driver string `mapstructure:"driver"`
}

type MongoSettings struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// PostgresSettings configures the relational user store. URL, when set, replaces the
// connection fields; the pool limits still apply.
type PostgresSettings struct {
	URL               string        `mapstructure:"url"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the rate-limit store. URL, when set, takes precedence over
// the discrete host fields.
type RedisSettings struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures the security event producer. No brokers means events are only logged.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type JWTSettings struct {
	Issuer          string        `mapstructure:"issuer"`
	AccessSecret    string        `mapstructure:"access_secret"`
	RefreshSecret   string        `mapstructure:"refresh_secret"`
	ResetSecret     string        `mapstructure:"reset_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	ResetTokenTTL   time.Duration `mapstructure:"reset_token_ttl"`
}

type SecuritySettings struct {
	// HashAlgorithm is bcrypt or argon2id; hashes of either kind always verify.
	HashAlgorithm    string `mapstructure:"hash_algorithm"`
	BcryptCost       int    `mapstructure:"bcrypt_cost"`
	OTPBcryptCost    int    `mapstructure:"otp_bcrypt_cost"`
	MinPasswordScore int    `mapstructure:"min_password_score"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type LockoutSettings struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Duration    time.Duration `mapstructure:"duration"`
}

type OTPSettings struct {
	ExpiryMinutes int `mapstructure:"expiry_minutes"`
}

// RateLimitSettings configures the IP sliding windows: one across the API and a stricter one on auth endpoints.
type RateLimitSettings struct {
	WindowDuration    time.Duration `mapstructure:"window_duration"`
	GlobalMaxRequests int           `mapstructure:"global_max_requests"`
	AuthMaxAttempts   int           `mapstructure:"auth_max_attempts"`
}

// SMTPSettings configures OTP email delivery. An empty host selects the console mailer.
type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// legacyEnv maps config keys to the variable names used by earlier deployments.
var legacyEnv = map[string][]string{
	"app.env":                        {"NODE_ENV"},
	"app.port":                       {"PORT"},
	"app.frontend_url":               {"FRONTEND_URL"},
	"mongo.uri":                      {"MONGO_URI"},
	"redis.url":                      {"REDIS_URL"},
	"postgres.url":                   {"DATABASE_URL"},
	"jwt.access_secret":              {"JWT_SECRET"},
	"jwt.refresh_secret":             {"JWT_REFRESH_SECRET"},
	"security.bcrypt_cost":           {"BCRYPT_SALT_ROUNDS"},
	"otp.expiry_minutes":             {"OTP_EXPIRY_MINUTES"},
	"rate_limit.global_max_requests": {"RATE_LIMIT_MAX"},
	"rate_limit.auth_max_attempts":   {"AUTH_RATE_LIMIT_MAX"},
	"smtp.username":                  {"SMTP_USER"},
	"smtp.password":                  {"SMTP_PASS"},
}

var configKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"app.frontend_url",
	"app.body_limit",
	"store.driver",
	"mongo.uri",
	"mongo.database",
	"mongo.collection",
	"mongo.connect_timeout",
	"postgres.url",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"redis.enabled",
	"redis.url",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.key_prefix",
	"kafka.brokers",
	"kafka.topic_prefix",
	"jwt.issuer",
	"jwt.access_secret",
	"jwt.refresh_secret",
	"jwt.reset_secret",
	"jwt.access_token_ttl",
	"jwt.refresh_token_ttl",
	"jwt.reset_token_ttl",
	"security.hash_algorithm",
	"security.bcrypt_cost",
	"security.otp_bcrypt_cost",
	"security.min_password_score",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
	"lockout.max_attempts",
	"lockout.duration",
	"otp.expiry_minutes",
	"rate_limit.window_duration",
	"rate_limit.global_max_requests",
	"rate_limit.auth_max_attempts",
	"smtp.host",
	"smtp.port",
	"smtp.username",
	"smtp.password",
	"smtp.from",
	"telemetry.tracing_enabled",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
}

// Load reads defaults and environment variables and validates the result.
func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("WOW")

	setDefaults(v)

	if err := bindEnvs(v, configKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fails fast on settings the service cannot run without.
func (c *AppConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(c.JWT.AccessSecret) == "" {
		errs = append(errs, errors.New("jwt.access_secret (JWT_SECRET) is required"))
	}
	if strings.TrimSpace(c.JWT.RefreshSecret) == "" {
		errs = append(errs, errors.New("jwt.refresh_secret (JWT_REFRESH_SECRET) is required"))
	}
	if c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("jwt.access_secret and jwt.refresh_secret must differ"))
	}

	switch c.Store.Driver {
	case StoreMongo:
		if strings.TrimSpace(c.Mongo.URI) == "" {
			errs = append(errs, errors.New("mongo.uri (MONGO_URI) is required for the mongo store"))
		}
	case StorePostgres:
		if strings.TrimSpace(c.Postgres.URL) == "" && strings.TrimSpace(c.Postgres.Host) == "" {
			errs = append(errs, errors.New("postgres.url (DATABASE_URL) or postgres.host is required for the postgres store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of mongo, postgres, memory", c.Store.Driver))
	}

	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("security.bcrypt_cost %d outside [4, 31]", c.Security.BcryptCost))
	}
	if c.Lockout.MaxAttempts <= 0 || c.Lockout.Duration <= 0 {
		errs = append(errs, errors.New("lockout.max_attempts and lockout.duration must be positive"))
	}
	if c.OTP.ExpiryMinutes <= 0 {
		errs = append(errs, errors.New("otp.expiry_minutes must be positive"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "wow-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 5000)
	v.SetDefault("app.frontend_url", "http://localhost:4200")
	v.SetDefault("app.body_limit", 10*1024)

	v.SetDefault("store.driver", StoreMongo)

	v.SetDefault("mongo.database", "wow")
	v.SetDefault("mongo.collection", "users")
	v.SetDefault("mongo.connect_timeout", "10s")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "wow")
	v.SetDefault("postgres.password", "wow_password")
	v.SetDefault("postgres.database", "wow")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "wow:rate-limit")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "wow")

	v.SetDefault("jwt.issuer", "wow-auth")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")
	v.SetDefault("jwt.reset_token_ttl", "5m")

	v.SetDefault("security.hash_algorithm", "bcrypt")
	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.otp_bcrypt_cost", 10)
	v.SetDefault("security.min_password_score", 0)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("lockout.max_attempts", 5)
	v.SetDefault("lockout.duration", "30m")

	v.SetDefault("otp.expiry_minutes", 10)

	v.SetDefault("rate_limit.window_duration", "15m")
	v.SetDefault("rate_limit.global_max_requests", 100)
	v.SetDefault("rate_limit.auth_max_attempts", 10)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "WOW - Work On Wheels <noreply@wow.local>")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "wow-auth")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{"WOW_" + envKey, envKey}, legacyEnv[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
