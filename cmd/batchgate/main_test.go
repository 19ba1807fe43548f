package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/batchgate/config"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantLevel zapcore.Level
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, zapcore.InfoLevel},
		{"console debug", config.LogConfig{Level: "debug", Format: "console"}, zapcore.DebugLevel},
		{"warn with caller", config.LogConfig{Level: "warn", EnableCaller: true, EnableStacktrace: true}, zapcore.WarnLevel},
		{"unknown level falls back", config.LogConfig{Level: "verbose"}, zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.OutputPaths = []string{filepath.Join(t.TempDir(), "out.log")}

			logger := initLogger(cfg)
			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			if tt.wantLevel > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
			}
			_ = logger.Sync()
		})
	}
}

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf)

	assert.Contains(t, buf.String(), "BatchGate "+Version)
	assert.Contains(t, buf.String(), "Git Commit: "+GitCommit)
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)

	for _, cmd := range []string{"serve", "version", "health", "--config"} {
		assert.Contains(t, buf.String(), cmd)
	}
}

func TestRunHealthCheck(t *testing.T) {
	ready := true
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/health":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/ready" && ready:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(ts.Close)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"healthy", []string{"--addr", ts.URL}, ""},
		{"trailing slash", []string{"--addr", ts.URL + "/", "--path", "/ready"}, ""},
		{"unhealthy path", []string{"--addr", ts.URL, "--path", "/down"}, "status 503"},
		{"bad flag", []string{"--port", "80"}, "flag provided but not defined"},
		{"unreachable", []string{"--addr", "http://127.0.0.1:1", "--timeout", "500ms"}, "connect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runHealthCheck(tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
