package app

import (
	"context"
	"path/filepath"
	"testing"

	"portfolio-console/internal/authtest"
	"portfolio-console/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T, apiURL string) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.APIURL = apiURL
	cfg.StorePath = filepath.Join(t.TempDir(), "session.db")
	return cfg
}

func TestNew_BoltSessionSurvivesRestart(t *testing.T) {
	server, err := authtest.New(authtest.Options{})
	require.NoError(t, err)
	defer server.Close()
	_, err = server.AddAccount(authtest.Account{Email: "admin@example.com", Username: "admin", Password: "correct-horse", Superuser: true})
	require.NoError(t, err)

	cfg := testConfig(t, server.URL())
	ctx := context.Background()

	first, err := New(ctx, cfg, Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	_, err = first.Session.Login(ctx, "admin", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(ctx, cfg, Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	defer second.Close()
	assert.True(t, second.Session.IsAdmin())
	assert.False(t, second.Session.TimersRunning())

	// the restored token is attached by the client
	require.NoError(t, second.Session.LoadCurrentUser(ctx))
}

func TestNew_Interactive(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.StoreDriver = config.StoreMemory

	a, err := New(context.Background(), cfg, Options{Interactive: true, Logger: zap.NewNop()})
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Activity)
	assert.Equal(t, 1, a.Activity.Listeners())
	select {
	case <-a.Session.Resolved():
	default:
		t.Fatal("session should be resolved after New")
	}
}

func TestNew_BadLogLevel(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.LogLevel = "loud"
	_, err := New(context.Background(), cfg, Options{})
	assert.Error(t, err)
}
