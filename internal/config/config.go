package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the typed runtime configuration of the service
type Config struct {
	Environment string
	Port        string
	LogLevel    slog.Level

	// StorageDriver selects the repository backend: "postgres" or "memory"
	StorageDriver string
	DatabaseURL   string
	DBMaxOpen     int
	DBMaxIdle     int
	DBMaxLifetime time.Duration
	AutoMigrate   bool

	RedisURL string

	Auth    AuthConfig
	Casdoor CasdoorConfig
	Kafka   KafkaConfig
	Attempt AttemptConfig
	Stats   StatsConfig
	Admin   AdminConfig

	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

// AuthConfig configures locally issued bearer tokens
type AuthConfig struct {
	// Provider is "local" (JWT issued by this service) or "casdoor"
	Provider  string
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

// AttemptConfig tunes the attempt engine
type AttemptConfig struct {
	DefaultPassingScore int
	LockTTL             time.Duration
	LockRetries         int
	LockRetryDelay      time.Duration
	DistributedLock     bool
	MaxEditDistance     int // typo tolerance for auto-graded text answers
}

type StatsConfig struct {
	CacheTTL       time.Duration
	RecentActivity int
	PopularTests   int
}

// AdminConfig seeds the first administrator at startup when both fields are set
type AdminConfig struct {
	Email    string
	Password string
}

// LoadConfig reads .env (if present) and the process environment
func LoadConfig() (*Config, error) {
	// .env is optional; real environments inject variables directly
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindings := map[string]string{
		"app.env":                  "APP_ENV",
		"app.port":                 "PORT",
		"log.level":                "LOG_LEVEL",
		"storage.driver":           "STORAGE_DRIVER",
		"database.url":             "DATABASE_URL",
		"database.max_open":        "DB_MAX_OPEN_CONNS",
		"database.max_idle":        "DB_MAX_IDLE_CONNS",
		"database.max_lifetime":    "DB_CONN_MAX_LIFETIME",
		"database.auto_migrate":    "DB_AUTO_MIGRATE",
		"redis.url":                "REDIS_URL",
		"auth.provider":            "AUTH_PROVIDER",
		"auth.jwt_secret":          "JWT_SECRET",
		"auth.token_ttl":           "JWT_TOKEN_TTL",
		"auth.issuer":              "JWT_ISSUER",
		"casdoor.endpoint":         "CASDOOR_ENDPOINT",
		"casdoor.client_id":        "CASDOOR_CLIENT_ID",
		"casdoor.client_secret":    "CASDOOR_CLIENT_SECRET",
		"casdoor.cert":             "CASDOOR_CERT",
		"casdoor.organization":     "CASDOOR_ORGANIZATION",
		"casdoor.application":      "CASDOOR_APPLICATION",
		"kafka.brokers":            "KAFKA_BROKERS",
		"kafka.topic_prefix":       "KAFKA_TOPIC_PREFIX",
		"attempt.passing_score":    "DEFAULT_PASSING_SCORE",
		"attempt.lock_ttl":         "ATTEMPT_LOCK_TTL",
		"attempt.lock_retries":     "ATTEMPT_LOCK_RETRIES",
		"attempt.lock_retry_delay": "ATTEMPT_LOCK_RETRY_DELAY",
		"attempt.distributed_lock": "ATTEMPT_DISTRIBUTED_LOCK",
		"grading.max_edit":         "GRADING_MAX_EDIT_DISTANCE",
		"stats.cache_ttl":          "STATS_CACHE_TTL",
		"stats.recent_activity":    "STATS_RECENT_ACTIVITY",
		"stats.popular_tests":      "STATS_POPULAR_TESTS",
		"admin.email":              "ADMIN_EMAIL",
		"admin.password":           "ADMIN_PASSWORD",
		"ratelimit.rps":            "RATE_LIMIT_RPS",
		"ratelimit.burst":          "RATE_LIMIT_BURST",
		"http.request_timeout":     "REQUEST_TIMEOUT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	cfg := &Config{
		Environment:   v.GetString("app.env"),
		Port:          v.GetString("app.port"),
		LogLevel:      parseLogLevel(v.GetString("log.level")),
		StorageDriver: strings.ToLower(v.GetString("storage.driver")),
		DatabaseURL:   v.GetString("database.url"),
		DBMaxOpen:     v.GetInt("database.max_open"),
		DBMaxIdle:     v.GetInt("database.max_idle"),
		DBMaxLifetime: v.GetDuration("database.max_lifetime"),
		AutoMigrate:   v.GetBool("database.auto_migrate"),
		RedisURL:      v.GetString("redis.url"),
		Auth: AuthConfig{
			Provider:  strings.ToLower(v.GetString("auth.provider")),
			JWTSecret: v.GetString("auth.jwt_secret"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Casdoor: CasdoorConfig{
			Endpoint:     v.GetString("casdoor.endpoint"),
			ClientID:     v.GetString("casdoor.client_id"),
			ClientSecret: v.GetString("casdoor.client_secret"),
			Cert:         v.GetString("casdoor.cert"),
			Organization: v.GetString("casdoor.organization"),
			Application:  v.GetString("casdoor.application"),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(v.GetString("kafka.brokers")),
			TopicPrefix: v.GetString("kafka.topic_prefix"),
		},
		Attempt: AttemptConfig{
			DefaultPassingScore: v.GetInt("attempt.passing_score"),
			LockTTL:             v.GetDuration("attempt.lock_ttl"),
			LockRetries:         v.GetInt("attempt.lock_retries"),
			LockRetryDelay:      v.GetDuration("attempt.lock_retry_delay"),
			DistributedLock:     v.GetBool("attempt.distributed_lock"),
			MaxEditDistance:     v.GetInt("grading.max_edit"),
		},
		Stats: StatsConfig{
			CacheTTL:       v.GetDuration("stats.cache_ttl"),
			RecentActivity: v.GetInt("stats.recent_activity"),
			PopularTests:   v.GetInt("stats.popular_tests"),
		},
		Admin: AdminConfig{
			Email:    v.GetString("admin.email"),
			Password: v.GetString("admin.password"),
		},
		RateLimitRPS:   v.GetFloat64("ratelimit.rps"),
		RateLimitBurst: v.GetInt("ratelimit.burst"),
		RequestTimeout: v.GetDuration("http.request_timeout"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.max_open", 25)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("auth.provider", "local")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.issuer", "quiz-service")
	v.SetDefault("kafka.topic_prefix", "quiz")
	v.SetDefault("attempt.passing_score", 60)
	v.SetDefault("attempt.lock_ttl", "10s")
	v.SetDefault("attempt.lock_retries", 50)
	v.SetDefault("attempt.lock_retry_delay", "20ms")
	v.SetDefault("attempt.distributed_lock", false)
	v.SetDefault("grading.max_edit", 0)
	v.SetDefault("stats.cache_ttl", "5m")
	v.SetDefault("stats.recent_activity", 10)
	v.SetDefault("stats.popular_tests", 5)
	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("http.request_timeout", "15s")
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres storage driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	// local tokens are issued at login under every provider
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.Auth.Provider {
	case "local":
	case "casdoor":
		if c.Casdoor.Endpoint == "" || c.Casdoor.Cert == "" {
			errs = append(errs, errors.New("CASDOOR_ENDPOINT and CASDOOR_CERT are required for the casdoor auth provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_PROVIDER %q", c.Auth.Provider))
	}

	if c.Attempt.DefaultPassingScore < 0 || c.Attempt.DefaultPassingScore > 100 {
		errs = append(errs, errors.New("DEFAULT_PASSING_SCORE must be within 0..100"))
	}
	if c.Attempt.LockRetries < 1 {
		errs = append(errs, errors.New("ATTEMPT_LOCK_RETRIES must be at least 1"))
	}
	if c.Attempt.DistributedLock && c.RedisURL == "" {
		errs = append(errs, errors.New("ATTEMPT_DISTRIBUTED_LOCK requires REDIS_URL"))
	}
	if c.Stats.RecentActivity < 1 {
		c.Stats.RecentActivity = 10
	}
	if c.Stats.PopularTests < 1 {
		c.Stats.PopularTests = 5
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
