package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous goes to login with return url", func(t *testing.T) {
		m := newTestManager(t, newStubAPI(), NewMemoryStore())
		m.Restore(ctx)

		d, err := RequireAdmin(ctx, m, "/admin/projects")
		require.NoError(t, err)
		assert.False(t, d.Allow)
		assert.Equal(t, DestinationLogin, d.Redirect)
		assert.Equal(t, "/login?returnUrl=%2Fadmin%2Fprojects", d.RedirectURL())
	})

	t.Run("non admin goes home", func(t *testing.T) {
		store := NewMemoryStore()
		seedSession(t, store, makeToken(t, epoch0.Add(time.Hour)), staffUser())
		m := newTestManager(t, newStubAPI(), store, WithClock(newFakeClock()))
		m.Restore(ctx)

		d, err := RequireAdmin(ctx, m, "/admin")
		require.NoError(t, err)
		assert.False(t, d.Allow)
		assert.Equal(t, "/", d.RedirectURL())
	})

	t.Run("admin allowed", func(t *testing.T) {
		store := NewMemoryStore()
		seedSession(t, store, makeToken(t, epoch0.Add(time.Hour)), adminUser())
		m := newTestManager(t, newStubAPI(), store, WithClock(newFakeClock()))
		m.Restore(ctx)

		d, err := RequireAdmin(ctx, m, "/admin")
		require.NoError(t, err)
		assert.True(t, d.Allow)
	})
}

func TestRequireAdmin_WaitsForRestore(t *testing.T) {
	store := NewMemoryStore()
	seedSession(t, store, makeToken(t, epoch0.Add(time.Hour)), adminUser())
	m := newTestManager(t, newStubAPI(), store, WithClock(newFakeClock()))

	result := make(chan Decision, 1)
	go func() {
		d, _ := RequireAdmin(context.Background(), m, "/admin")
		result <- d
	}()

	select {
	case <-result:
		t.Fatal("guard decided before restore finished")
	case <-time.After(20 * time.Millisecond):
	}

	m.Restore(context.Background())
	d := <-result
	assert.True(t, d.Allow)
}

func TestRequireAdmin_ContextCancelled(t *testing.T) {
	m := newTestManager(t, newStubAPI(), NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RequireAdmin(ctx, m, "/admin")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublicOnly(t *testing.T) {
	ctx := context.Background()

	anon := newTestManager(t, newStubAPI(), NewMemoryStore())
	anon.Restore(ctx)
	d, err := PublicOnly(ctx, anon)
	require.NoError(t, err)
	assert.True(t, d.Allow)

	store := NewMemoryStore()
	seedSession(t, store, makeToken(t, epoch0.Add(time.Hour)), staffUser())
	signedIn := newTestManager(t, newStubAPI(), store, WithClock(newFakeClock()))
	signedIn.Restore(ctx)
	d, err = PublicOnly(ctx, signedIn)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, DestinationAdmin, d.Redirect)
}
