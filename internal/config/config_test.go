package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
auth_token: "SG.test"
base_url: "https://sendgrid.example.com/"
list_name: "Newsletter"
timeout_seconds: 45
requests_per_second: 2.5
batch_size: 500
strict: true
streams: ["Contacts"]

polling:
  interval_seconds: 2
  timeout_seconds: 600
  max_attempts: 100

state:
  backend: "redis"
  redis_url: "redis://localhost:6379/0"
  key_prefix: "acme"

log:
  level: "debug"
  redact_pii: false

metrics:
  addr: ":9090"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "SG.test", cfg.AuthToken)
	assert.Equal(t, "https://sendgrid.example.com", cfg.BaseURL)
	assert.Equal(t, "Newsletter", cfg.ListName)
	assert.True(t, cfg.HasTargetList())
	assert.Equal(t, 45*time.Second, cfg.Timeout())
	assert.Equal(t, 2.5, cfg.RequestsPerSecond)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.True(t, cfg.Strict)
	assert.Equal(t, []string{"Contacts"}, cfg.Streams)

	assert.Equal(t, 2*time.Second, cfg.Polling.Interval())
	assert.Equal(t, 10*time.Minute, cfg.Polling.Timeout())
	assert.Equal(t, 100, cfg.Polling.MaxAttempts)

	assert.Equal(t, BackendRedis, cfg.State.Backend)
	assert.Equal(t, "acme", cfg.State.KeyPrefix)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Redact())
	assert.Equal(t, ":9090", cfg.Metrics.Addr)

	require.NoError(t, cfg.Validate())
}

func TestParse_SingerJSONConfig(t *testing.T) {
	cfg, err := Parse([]byte(`{"auth_token": "SG.json", "unsubscribe_list_id": "legacy"}`))
	require.NoError(t, err)

	assert.Equal(t, "SG.json", cfg.AuthToken)
	assert.False(t, cfg.HasTargetList())
	require.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`auth_token: x`))
	require.NoError(t, err)

	assert.Equal(t, "https://api.sendgrid.com", cfg.BaseURL)
	assert.Equal(t, 30, cfg.TimeoutSeconds)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 10000, cfg.BatchSize)
	assert.Equal(t, []string{StreamContacts, StreamCustomers}, cfg.Streams)
	assert.Equal(t, 5*time.Second, cfg.Polling.Interval())
	assert.Zero(t, cfg.Polling.Timeout())
	assert.Zero(t, cfg.Polling.MaxAttempts)
	assert.Equal(t, BackendFile, cfg.State.Backend)
	assert.Equal(t, "state.json", cfg.State.Path)
	assert.Equal(t, "target-sendgrid", cfg.State.KeyPrefix)
	assert.Equal(t, "target_state", cfg.State.Table)
	assert.Equal(t, 10000, cfg.State.MaxBookmarks)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Redact())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
		errMsg  string
	}{
		{name: "missing token", yaml: `base_url: x`, wantErr: ErrMissingAuthToken},
		{name: "unknown backend", yaml: "auth_token: x\nstate: {backend: etcd}", wantErr: ErrUnknownBackend},
		{name: "redis without url", yaml: "auth_token: x\nstate: {backend: redis}", errMsg: "redis_url"},
		{name: "postgres without dsn", yaml: "auth_token: x\nstate: {backend: postgres}", errMsg: "database_url"},
		{name: "dynamodb without table", yaml: "auth_token: x\nstate: {backend: dynamodb}", errMsg: "dynamodb_table"},
		{name: "s3 without bucket", yaml: "auth_token: x\nstate: {backend: s3}", errMsg: "s3_bucket"},
		{name: "negative batch", yaml: "auth_token: x\nbatch_size: -1", errMsg: "batch_size"},
		{name: "negative polling", yaml: "auth_token: x\npolling: {max_attempts: -2}", errMsg: "polling"},
		{name: "negative bookmark cap", yaml: "auth_token: x\nstate: {max_bookmarks: -1}", errMsg: "max_bookmarks"},
		{name: "unknown stream", yaml: "auth_token: x\nstreams: [Contacts, Deals]", wantErr: ErrUnknownStream},
		{name: "memory ok", yaml: "auth_token: x\nstate: {backend: memory}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)

			err = cfg.Validate()
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"auth_token": "from-file"}`), 0644))

	t.Setenv("SENDGRID_AUTH_TOKEN", "from-env")
	t.Setenv("SENDGRID_BASE_URL", "http://localhost:8080/")
	t.Setenv("SENDGRID_LIST_ID", "list-123")
	t.Setenv("TARGET_STATE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("TARGET_METRICS_ADDR", ":2112")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.AuthToken)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "list-123", cfg.ListID)
	assert.Equal(t, BackendPostgres, cfg.State.Backend)
	assert.Equal(t, "postgres://u:p@localhost/db", cfg.State.DatabaseURL)
	assert.Equal(t, ":2112", cfg.Metrics.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGetAWSProfile(t *testing.T) {
	c := StateConfig{AWSProfile: "dev"}

	t.Setenv("AWS_PROFILE_OVERRIDE", "")
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	assert.Equal(t, "dev", c.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "iam")
	assert.Equal(t, "", c.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "prod")
	assert.Equal(t, "prod", c.GetAWSProfile())
}
