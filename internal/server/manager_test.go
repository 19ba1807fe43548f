package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	m := NewManager(handler, cfg, zap.NewNop())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Zero(t, cfg.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestManager_StartAndShutdown(t *testing.T) {
	m := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))

	require.NoError(t, m.Start())
	assert.NotEqual(t, "127.0.0.1:0", m.Addr(), "Addr reports the bound port once started")

	resp, err := http.Get("http://" + m.Addr() + "/api/v1/batch")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
}

func TestManager_Lifecycle(t *testing.T) {
	tests := []struct {
		name    string
		run     func(m *Manager) error
		wantErr string
	}{
		{
			name: "double start",
			run: func(m *Manager) error {
				if err := m.Start(); err != nil {
					return err
				}
				return m.Start()
			},
			wantErr: "already started",
		},
		{
			name: "start after shutdown",
			run: func(m *Manager) error {
				if err := m.Start(); err != nil {
					return err
				}
				if err := m.Shutdown(context.Background()); err != nil {
					return err
				}
				return m.StartTLS("cert.pem", "key.pem")
			},
			wantErr: "closed",
		},
		{
			name: "shutdown is idempotent",
			run: func(m *Manager) error {
				if err := m.Start(); err != nil {
					return err
				}
				if err := m.Shutdown(context.Background()); err != nil {
					return err
				}
				return m.Shutdown(context.Background())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(newTestManager(t, http.NewServeMux()))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManager_StartTLS_MissingCertificate(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())

	require.NoError(t, m.StartTLS("does-not-exist.pem", "does-not-exist.key"))

	select {
	case err := <-m.Errors():
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an asynchronous certificate error")
	}
	require.NotNil(t, m.server.TLSConfig)
}

func TestManager_WaitForShutdown_Context(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())
	require.NoError(t, m.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.WaitForShutdown(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForShutdown did not return after cancel")
	}
	assert.False(t, m.IsRunning())
}

func TestManager_Addr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = ":9999"
	m := NewManager(http.NewServeMux(), cfg, zap.NewNop())

	assert.Equal(t, ":9999", m.Addr())
	assert.True(t, m.IsRunning(), "a new manager is not closed")
}
