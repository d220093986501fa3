package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default stream names served by the contacts sink.
const (
	StreamContacts  = "Contacts"
	StreamCustomers = "Customers"
)

// State backend identifiers.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendS3       = "s3"
)

var (
	ErrMissingAuthToken = errors.New("auth_token is required")
	ErrUnknownBackend   = errors.New("unknown state backend")
	ErrUnknownStream    = errors.New("unknown stream")
)

// Config holds all configuration for the target. Keys are flat at the top
// level so a singer-style config.json parses unchanged.
type Config struct {
	AuthToken         string   `yaml:"auth_token"`
	BaseURL           string   `yaml:"base_url"`
	ListName          string   `yaml:"list_name"`
	ListID            string   `yaml:"list_id"`
	TimeoutSeconds    int      `yaml:"timeout_seconds"`
	MaxRetries        int      `yaml:"max_retries"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	BatchSize         int      `yaml:"batch_size"`
	Strict            bool     `yaml:"strict"`
	Streams           []string `yaml:"streams"`

	Polling PollingConfig `yaml:"polling"`
	State   StateConfig   `yaml:"state"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Timeout returns the configured HTTP timeout as a duration
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HasTargetList reports whether a default list should be resolved per batch.
func (c Config) HasTargetList() bool {
	return c.ListName != "" || c.ListID != ""
}

// PollingConfig bounds the import-job wait loop. Zero timeout and zero
// max attempts mean "wait until completed".
type PollingConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	TimeoutSeconds  int `yaml:"timeout_seconds"`
	MaxAttempts     int `yaml:"max_attempts"`
}

// Interval returns the polling interval as a duration
func (c PollingConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Timeout returns the overall polling bound, zero when unbounded
func (c PollingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StateConfig selects and configures the checkpoint backend
type StateConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	RedisURL      string `yaml:"redis_url"`
	KeyPrefix     string `yaml:"key_prefix"`
	DatabaseURL   string `yaml:"database_url"`
	Table         string `yaml:"table"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	S3Bucket      string `yaml:"s3_bucket"`
	S3Prefix      string `yaml:"s3_prefix"`
	MaxBookmarks  int    `yaml:"max_bookmarks"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"` // Empty string uses default credential chain
	AWSAccessKey  string `yaml:"aws_access_key"`
	AWSSecretKey  string `yaml:"aws_secret_key"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StateConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true)
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// MetricsConfig holds the metrics/health listener settings
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML or JSON configuration bytes and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = 30
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10000
	}
	if len(cfg.Streams) == 0 {
		cfg.Streams = []string{StreamContacts, StreamCustomers}
	}
	if cfg.Polling.IntervalSeconds == 0 {
		cfg.Polling.IntervalSeconds = 5
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = BackendFile
	}
	if cfg.State.Path == "" {
		cfg.State.Path = "state.json"
	}
	if cfg.State.KeyPrefix == "" {
		cfg.State.KeyPrefix = "target-sendgrid"
	}
	if cfg.State.MaxBookmarks == 0 {
		cfg.State.MaxBookmarks = 10000
	}
	if cfg.State.Table == "" {
		cfg.State.Table = "target_state"
	}
	if cfg.State.AWSRegion == "" {
		cfg.State.AWSRegion = "us-west-2"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate reports configuration that cannot run.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return ErrMissingAuthToken
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Polling.IntervalSeconds < 0 || cfg.Polling.TimeoutSeconds < 0 || cfg.Polling.MaxAttempts < 0 {
		return fmt.Errorf("polling settings must not be negative")
	}
	if cfg.State.MaxBookmarks < 0 {
		return fmt.Errorf("state.max_bookmarks must not be negative, got %d", cfg.State.MaxBookmarks)
	}
	for _, stream := range cfg.Streams {
		if stream != StreamContacts && stream != StreamCustomers {
			return fmt.Errorf("%w: %q", ErrUnknownStream, stream)
		}
	}
	switch cfg.State.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if cfg.State.RedisURL == "" {
			return fmt.Errorf("state.redis_url is required for the redis backend")
		}
	case BackendPostgres:
		if cfg.State.DatabaseURL == "" {
			return fmt.Errorf("state.database_url is required for the postgres backend")
		}
	case BackendDynamoDB:
		if cfg.State.DynamoDBTable == "" {
			return fmt.Errorf("state.dynamodb_table is required for the dynamodb backend")
		}
	case BackendS3:
		if cfg.State.S3Bucket == "" {
			return fmt.Errorf("state.s3_bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.State.Backend)
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("SENDGRID_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
	if v := os.Getenv("SENDGRID_BASE_URL"); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("SENDGRID_LIST_NAME"); v != "" {
		cfg.ListName = v
	}
	if v := os.Getenv("SENDGRID_LIST_ID"); v != "" {
		cfg.ListID = v
	}
	if v := os.Getenv("TARGET_STATE_BACKEND"); v != "" {
		cfg.State.Backend = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.State.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.State.RedisURL = v
	}
	if v := os.Getenv("TARGET_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}
