package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chatterdocs/entbridge/pkg/auth"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Enterprise authentication configuration
	Enterprise EnterpriseConfig

	// Store configuration (Redis security state + Postgres user store)
	Store StoreConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// EnterpriseConfig holds the enterprise SSO bridge settings
type EnterpriseConfig struct {
	Enabled bool

	// JWTSecret is the shared HS256 signing secret
	JWTSecret string

	// TokenMaxAge bounds current_time - iat independently of exp
	TokenMaxAge time.Duration

	// AllowedOrigins is the caller allow-list (IPs or CIDR blocks).
	// Empty means unrestricted.
	AllowedOrigins []string

	// RoleMapping translates enterprise role strings to platform roles
	RoleMapping map[string]auth.Role

	// RateLimit is the sliding-window admission policy applied per user
	// identity and per origin address
	RateLimit RateLimitConfig

	// Abuse is the failure-ledger / suspicion policy
	Abuse AbuseConfig

	// Audit is the security audit log policy
	Audit AuditConfig

	// StoreTimeout bounds each Redis round-trip
	StoreTimeout time.Duration
}

// RateLimitConfig holds sliding-window rate limit policy
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// AbuseConfig holds the suspicious-activity thresholds
type AbuseConfig struct {
	// MaxFailures failures within SuspicionWindow marks an identity suspicious
	MaxFailures     int
	SuspicionWindow time.Duration

	// LedgerTTL bounds how long failure entries are retained
	LedgerTTL time.Duration
}

// AuditConfig holds audit recorder policy
type AuditConfig struct {
	// QueueSize bounds the asynchronous write queue; oldest entries are
	// dropped on overflow
	QueueSize int

	// MaxEntriesPerDay caps each calendar-day partition
	MaxEntriesPerDay int64

	// Retention is how long day partitions are kept
	Retention time.Duration
}

// StoreConfig holds shared-store connection settings
type StoreConfig struct {
	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Postgres config (user/tenant repository)
	PostgresURL      string
	PostgresMaxConns int
	PostgresTimeout  time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string
	LogJSON        bool
	MetricsEnabled bool

	// SummarySchedule is a cron expression for the periodic security
	// summary log line; empty disables the job
	SummarySchedule string
}

// policyFile is the YAML shape of the optional policy file. Role mappings
// and origin allow-lists are awkward as environment variables, so they can
// be supplied here instead; file values override env.
type policyFile struct {
	RoleMapping    map[string]string `yaml:"role_mapping"`
	AllowedOrigins []string          `yaml:"allowed_origins"`
}

// Load loads configuration from environment variables plus the optional
// policy file named by ENTBRIDGE_POLICY_FILE.
func Load() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Enterprise:    loadEnterpriseConfig(),
		Store:         loadStoreConfig(),
		Observability: loadObservabilityConfig(),
	}

	if path := getEnv("ENTBRIDGE_POLICY_FILE", ""); path != "" {
		if err := cfg.applyPolicyFile(path); err != nil {
			return nil, fmt.Errorf("loading policy file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ENTBRIDGE_HOST", "0.0.0.0"),
		Port:            getEnv("ENTBRIDGE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ENTBRIDGE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ENTBRIDGE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ENTBRIDGE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ENTBRIDGE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ENTBRIDGE_HEALTH_PORT", "9090"),
	}
}

func loadEnterpriseConfig() EnterpriseConfig {
	cfg := EnterpriseConfig{
		Enabled:     getEnvBool("ENTBRIDGE_ENTERPRISE_ENABLED", false),
		JWTSecret:   getEnv("ENTBRIDGE_JWT_SECRET", ""),
		TokenMaxAge: getEnvDuration("ENTBRIDGE_TOKEN_MAX_AGE", time.Hour),
		RateLimit: RateLimitConfig{
			Limit:  getEnvInt("ENTBRIDGE_RATE_LIMIT", 10),
			Window: getEnvDuration("ENTBRIDGE_RATE_WINDOW", 60*time.Second),
		},
		Abuse: AbuseConfig{
			MaxFailures:     getEnvInt("ENTBRIDGE_ABUSE_MAX_FAILURES", 5),
			SuspicionWindow: getEnvDuration("ENTBRIDGE_ABUSE_WINDOW", 5*time.Minute),
			LedgerTTL:       getEnvDuration("ENTBRIDGE_ABUSE_LEDGER_TTL", time.Hour),
		},
		Audit: AuditConfig{
			QueueSize:        getEnvInt("ENTBRIDGE_AUDIT_QUEUE_SIZE", 1024),
			MaxEntriesPerDay: getEnvInt64("ENTBRIDGE_AUDIT_MAX_PER_DAY", 1000),
			Retention:        getEnvDuration("ENTBRIDGE_AUDIT_RETENTION", 7*24*time.Hour),
		},
		StoreTimeout: getEnvDuration("ENTBRIDGE_STORE_TIMEOUT", 2*time.Second),
	}

	if origins := getEnv("ENTBRIDGE_ALLOWED_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	cfg.RoleMapping = parseRoleMapping(getEnv("ENTBRIDGE_ROLE_MAPPING", ""))

	return cfg
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		RedisURL:         getEnv("ENTBRIDGE_REDIS_URL", "redis://localhost:6379"),
		RedisPassword:    getEnv("ENTBRIDGE_REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("ENTBRIDGE_REDIS_DB", 0),
		RedisMaxRetries:  getEnvInt("ENTBRIDGE_REDIS_MAX_RETRIES", 3),
		RedisPoolSize:    getEnvInt("ENTBRIDGE_REDIS_POOL_SIZE", 10),
		PostgresURL:      getEnv("ENTBRIDGE_POSTGRES_URL", ""),
		PostgresMaxConns: getEnvInt("ENTBRIDGE_POSTGRES_MAX_CONNS", 20),
		PostgresTimeout:  getEnvDuration("ENTBRIDGE_POSTGRES_TIMEOUT", 5*time.Second),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:        getEnv("ENTBRIDGE_LOG_LEVEL", "info"),
		LogJSON:         getEnvBool("ENTBRIDGE_LOG_JSON", true),
		MetricsEnabled:  getEnvBool("ENTBRIDGE_METRICS_ENABLED", true),
		SummarySchedule: getEnv("ENTBRIDGE_SUMMARY_SCHEDULE", ""),
	}
}

// parseRoleMapping parses "enterprise_role=platform_role" pairs separated by
// commas, e.g. "super_admin=owner,manager=admin,employee=normal".
func parseRoleMapping(raw string) map[string]auth.Role {
	mapping := make(map[string]auth.Role)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		mapping[strings.TrimSpace(parts[0])] = auth.Role(strings.TrimSpace(parts[1]))
	}
	return mapping
}

func (c *Config) applyPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var policy policyFile
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}

	if len(policy.RoleMapping) > 0 {
		mapping := make(map[string]auth.Role, len(policy.RoleMapping))
		for enterprise, platform := range policy.RoleMapping {
			mapping[enterprise] = auth.Role(platform)
		}
		c.Enterprise.RoleMapping = mapping
	}
	if len(policy.AllowedOrigins) > 0 {
		c.Enterprise.AllowedOrigins = policy.AllowedOrigins
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Enterprise.Enabled {
		if c.Enterprise.JWTSecret == "" {
			return fmt.Errorf("JWT secret is required when enterprise auth is enabled")
		}
		if len(c.Enterprise.RoleMapping) == 0 {
			return fmt.Errorf("role mapping is required when enterprise auth is enabled")
		}
		if c.Enterprise.TokenMaxAge <= 0 {
			return fmt.Errorf("token max age must be positive")
		}
		if c.Enterprise.RateLimit.Limit <= 0 || c.Enterprise.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit and window must be positive")
		}
		if c.Enterprise.Abuse.MaxFailures <= 0 {
			return fmt.Errorf("abuse max failures must be positive")
		}
		if c.Enterprise.Audit.QueueSize <= 0 {
			return fmt.Errorf("audit queue size must be positive")
		}
	}

	if c.Store.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
