package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig() Config {
	return Config{
		GeneralParams:    GeneralParams{Env: "test", SecretKey: "s"},
		HttpServerParams: HttpServerParams{Address: "127.0.0.1", Port: "8080"},
		SignalingParams: SignalingParams{
			AdmissionTTLSeconds: 300,
			HistoryLimit:        200,
			SendBuffer:          256,
			MaxMessageSize:      65536,
		},
		PersistenceParams: PersistenceParams{Workers: 1, QueueSize: 1, WriteTimeoutSeconds: 1},
	}
}

func TestNewConfigManager_Defaults(t *testing.T) {
	path := writeConfig(t, `
general_params:
  env: "test"
  secret_key: "secret"
`)

	cm, err := NewConfigManager(path)
	require.NoError(t, err)
	c := cm.GetConfig()

	assert.Equal(t, "0.0.0.0:8080", c.HttpServerParams.GetAddress())
	assert.Equal(t, 200, c.SignalingParams.HistoryLimit)
	assert.Equal(t, 256, c.SignalingParams.SendBuffer)
	assert.EqualValues(t, 64*1024, c.SignalingParams.MaxMessageSize)
	assert.Equal(t, 5*time.Minute, c.SignalingParams.AdmissionTTL())
	assert.Equal(t, 5*time.Second, c.PersistenceParams.WriteTimeout())
	assert.False(t, c.MainDBParams.Enabled)
	assert.False(t, c.S3Params.Enabled)
	assert.NoError(t, c.Validate())
}

func TestNewConfigManager_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
general_params:
  env: "prod"
  secret_key: "secret"
http_server_params:
  port: "9090"
  allowed_origins: ["app.example.com", "*.example.org"]
signaling_params:
  require_admission: true
  history_limit: 20
`)
	t.Setenv("APP_SIGNALING_PARAMS_HISTORY_LIMIT", "50")

	cm, err := NewConfigManager(path)
	require.NoError(t, err)
	c := cm.GetConfig()

	assert.Equal(t, "prod", c.GeneralParams.Env)
	assert.Equal(t, "9090", c.HttpServerParams.Port)
	assert.Equal(t, []string{"app.example.com", "*.example.org"}, c.HttpServerParams.AllowedOrigins)
	assert.True(t, c.SignalingParams.RequireAdmission)
	assert.Equal(t, 50, c.SignalingParams.HistoryLimit, "env wins over file")
}

func TestNewConfigManager_MissingFile(t *testing.T) {
	_, err := NewConfigManager(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "no secret", mutate: func(c *Config) { c.GeneralParams.SecretKey = "" }, wantErr: true},
		{name: "bad env", mutate: func(c *Config) { c.GeneralParams.Env = "staging" }, wantErr: true},
		{name: "no port", mutate: func(c *Config) { c.HttpServerParams.Port = "" }, wantErr: true},
		{name: "zero history", mutate: func(c *Config) { c.SignalingParams.HistoryLimit = 0 }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.PersistenceParams.Workers = 0 }, wantErr: true},
		{name: "disabled db needs nothing", mutate: func(c *Config) { c.MainDBParams = MainDBParams{} }},
		{name: "enabled db without host", mutate: func(c *Config) {
			c.MainDBParams = MainDBParams{Enabled: true, Username: "u", Password: "p", Name: "n", Port: 5432}
		}, wantErr: true},
		{name: "enabled db", mutate: func(c *Config) {
			c.MainDBParams = MainDBParams{Enabled: true, Host: "h", Username: "u", Password: "p", Name: "n", Port: 6432}
		}},
		{name: "enabled s3 without bucket", mutate: func(c *Config) {
			c.S3Params = S3Params{Enabled: true, Endpoint: "e", AccessKeyID: "a", SecretAccessKey: "s"}
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
