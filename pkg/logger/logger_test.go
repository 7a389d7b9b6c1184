package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Environments(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		expectErr bool
	}{
		{name: "prod", env: "prod"},
		{name: "dev", env: "dev"},
		{name: "test", env: "test"},
		{name: "uppercase env", env: "PROD"},
		{name: "unknown env", env: "staging", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(Config{Env: tt.env, Output: &bytes.Buffer{}})
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, log)
		})
	}
}

func TestNew_ProdWritesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := New(Config{Env: "prod", Output: buf})
	require.NoError(t, err)

	log.Component("hub").Info("room created", "room_id", "abc123")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "room created", record["msg"])
	assert.Equal(t, "hub", record["component"])
	assert.Equal(t, "abc123", record["room_id"])
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env      string
		explicit string
		want     slog.Level
		wantErr  bool
	}{
		{env: "dev", want: slog.LevelDebug},
		{env: "prod", want: slog.LevelInfo},
		{env: "test", want: slog.LevelError},
		{env: "prod", explicit: "debug", want: slog.LevelDebug},
		{env: "dev", explicit: "WARN", want: slog.LevelWarn},
		{env: "dev", explicit: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.explicit, func(t *testing.T) {
			got, err := parseLogLevel(tt.env, tt.explicit)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShortenPath(t *testing.T) {
	assert.Equal(t, "websocket/hub.go", shortenPath("/root/module/internal/websocket/hub.go", 2))
	assert.Equal(t, "hub.go", shortenPath("hub.go", 3))
	assert.Equal(t, "/a/b/c.go", shortenPath("/a/b/c.go", 0))
}

func TestDevTimeFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := New(Config{Env: "dev", Output: buf, TimeFormat: "2006"})
	require.NoError(t, err)

	log.Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "time=2"), buf.String())
}
