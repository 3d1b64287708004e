// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"portfolio-console/internal/api"
	"portfolio-console/internal/domain/auth"
	xerrors "portfolio-console/internal/pkg/errors"
	"portfolio-console/internal/pkg/jwt"

	"go.uber.org/zap"
)

const (
	DefaultRefreshInterval   = 25 * time.Minute
	DefaultInactivityCheck   = 60 * time.Second
	DefaultInactivityTimeout = 30 * time.Minute
)

// Manager owns the client-side authentication session. State is only mutated
// through its methods; every mutation runs under mu so a transition is never
// observed half-applied. Network calls run outside the lock.
type Manager struct {
	api      AuthAPI
	store    Store
	logger   *zap.Logger
	clock    Clock
	activity ActivitySource

	refreshEvery   time.Duration
	checkEvery     time.Duration
	idleTimeout    time.Duration
	requestTimeout time.Duration
	timersEnabled  bool
	revalidate     bool

	mu           sync.Mutex
	accessToken  string
	tempToken    string
	user         *auth.User
	methods      []string
	lastActivity time.Time
	loading      int
	epoch        uint64
	timers       *lifecycle
	closed       bool

	stopActivity func()
	wg           sync.WaitGroup

	restoreOnce sync.Once
	resolveOnce sync.Once
	resolved    chan struct{}

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

type Option func(*Manager)

func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithActivitySource installs the user-activity listener for the manager's lifetime.
func WithActivitySource(src ActivitySource) Option {
	return func(m *Manager) { m.activity = src }
}

// WithTimers overrides the refresh interval, inactivity check interval and
// inactivity threshold. Zero values keep the defaults.
func WithTimers(refreshEvery, checkEvery, idleTimeout time.Duration) Option {
	return func(m *Manager) {
		if refreshEvery > 0 {
			m.refreshEvery = refreshEvery
		}
		if checkEvery > 0 {
			m.checkEvery = checkEvery
		}
		if idleTimeout > 0 {
			m.idleTimeout = idleTimeout
		}
	}
}

// WithoutTimers disables the refresh and inactivity timers, for one-shot use.
func WithoutTimers() Option {
	return func(m *Manager) { m.timersEnabled = false }
}

// WithRevalidateOnRestore makes Restore confirm a restored session against /auth/me.
func WithRevalidateOnRestore(on bool) Option {
	return func(m *Manager) { m.revalidate = on }
}

// WithRequestTimeout bounds timer-driven refresh calls.
func WithRequestTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.requestTimeout = d
		}
	}
}

func NewManager(authAPI AuthAPI, store Store, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		api:            authAPI,
		store:          store,
		logger:         logger.Named("session"),
		clock:          systemClock{},
		refreshEvery:   DefaultRefreshInterval,
		checkEvery:     DefaultInactivityCheck,
		idleTimeout:    DefaultInactivityTimeout,
		requestTimeout: 10 * time.Second,
		timersEnabled:  true,
		resolved:       make(chan struct{}),
		subs:           make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastActivity = m.clock.Now()
	if m.activity != nil {
		m.stopActivity = m.activity.Listen(m.Touch)
	}
	return m
}

// ========== Read-only state ==========

func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	return State{
		AccessToken:         m.accessToken,
		TempToken:           m.tempToken,
		User:                m.user.Clone(),
		Available2FAMethods: append([]string(nil), m.methods...),
		LastActivity:        m.lastActivity,
		Loading:             m.loading > 0,
	}
}

func (m *Manager) CurrentUser() *auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user.Clone()
}

// AccessToken returns the bearer credential, or "" without a session.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken
}

func (m *Manager) TempToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tempToken
}

func (m *Manager) Available2FAMethods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.methods...)
}

func (m *Manager) IsAuthenticated() bool { return m.Snapshot().IsAuthenticated() }

func (m *Manager) IsAdmin() bool { return m.Snapshot().IsAdmin() }

func (m *Manager) Has2FA() bool { return m.Snapshot().Has2FA() }

func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading > 0
}

func (m *Manager) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// Resolved is closed once startup restoration has finished, whatever its outcome.
func (m *Manager) Resolved() <-chan struct{} {
	return m.resolved
}

// Subscribe registers fn for every session transition. The returned func
// removes the subscription.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify(ev Event) {
	m.subMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// ========== Login / 2FA ==========

// Login sends credentials. A 2FA challenge stages a temp token and points to
// the verification screen; a direct token establishes the session.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	epoch := m.beginCall()
	defer m.endCall()

	resp, err := m.api.Login(ctx, auth.LoginRequest{Identifier: identifier, Password: password})
	if err != nil {
		m.logger.Info("login rejected", zap.String("identifier", identifier), zap.Error(err))
		return nil, err
	}

	switch {
	case resp.Requires2FA:
		if resp.TempToken == "" {
			return nil, fmt.Errorf("login: 2fa required without temp token: %w", xerrors.ErrUnexpectedResponse)
		}
		return m.stageChallenge(epoch, resp)
	case resp.AccessToken != "":
		return m.completeLogin(ctx, epoch, resp.AccessToken, resp.User, ReasonLogin)
	default:
		return nil, fmt.Errorf("login: no access token or challenge: %w", xerrors.ErrUnexpectedResponse)
	}
}

func (m *Manager) stageChallenge(epoch uint64, resp *auth.LoginResponse) (*LoginResult, error) {
	methods := resp.Available2FAMethods
	if len(methods) == 0 {
		methods = defaultMethods
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return nil, xerrors.ErrSessionSuperseded
	}
	// A fresh challenge replaces whatever session was held before.
	m.epoch++
	if m.accessToken != "" {
		m.clearSessionLocked()
	}
	m.tempToken = resp.TempToken
	m.methods = append([]string(nil), methods...)
	m.persistLocked(KeyTempToken, resp.TempToken)
	state := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("second factor required", zap.Strings("methods", methods))
	m.notify(Event{Reason: ReasonChallenge, Destination: DestinationVerify2FA, State: state})

	return &LoginResult{
		Destination: DestinationVerify2FA,
		Methods:     append([]string(nil), methods...),
	}, nil
}

// Verify2FA completes a pending challenge. An empty tempToken uses the held one.
func (m *Manager) Verify2FA(ctx context.Context, tempToken, code string) (*LoginResult, error) {
	if tempToken == "" {
		tempToken = m.TempToken()
	}
	if tempToken == "" {
		return nil, xerrors.ErrNoTempToken
	}

	epoch := m.beginCall()
	defer m.endCall()

	resp, err := m.api.Verify2FA(ctx, auth.Verify2FARequest{TempToken: tempToken, Code: code})
	if err != nil {
		m.logger.Info("2fa verification rejected", zap.Error(err))
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("verify-2fa: no access token: %w", xerrors.ErrUnexpectedResponse)
	}

	return m.completeLogin(ctx, epoch, resp.AccessToken, resp.User, ReasonVerified)
}

// RequestEmailCode asks the server to mail a code for the pending challenge.
func (m *Manager) RequestEmailCode(ctx context.Context) (string, error) {
	tempToken := m.TempToken()
	if tempToken == "" {
		return "", xerrors.ErrNoTempToken
	}
	resp, err := m.api.RequestEmailCode(ctx, tempToken)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (m *Manager) completeLogin(ctx context.Context, epoch uint64, token string, user *auth.User, reason Reason) (*LoginResult, error) {
	if user == nil {
		fetched, err := m.api.Me(api.WithBearer(ctx, token))
		if err != nil {
			m.logger.Warn("failed to load current user after login", zap.Error(err))
			m.logoutIfEpoch(epoch, ReasonUserFailed)
			return nil, fmt.Errorf("failed to load current user: %w", err)
		}
		user = fetched
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return nil, xerrors.ErrSessionSuperseded
	}
	// A new identity invalidates refreshes and reloads begun under the old one.
	m.epoch++
	m.establishLocked(token, user)
	state := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("session established",
		zap.Int64("user_id", user.ID),
		zap.Bool("admin", user.IsSuperuser),
		zap.String("reason", string(reason)),
	)
	m.notify(Event{Reason: reason, Destination: DestinationAdmin, State: state})

	return &LoginResult{Destination: DestinationAdmin, User: user.Clone()}, nil
}

// establishLocked sets token and user together, drops any pending challenge,
// mirrors the result to the store and starts the lifecycle timers.
func (m *Manager) establishLocked(token string, user *auth.User) {
	m.accessToken = token
	m.user = user.Clone()
	m.tempToken = ""
	m.methods = nil
	m.lastActivity = m.clock.Now()

	m.persistLocked(KeyAccessToken, token)
	m.persistUserLocked()
	m.deleteLocked(KeyTempToken)

	m.startTimersLocked()
}

// ========== Refresh / current user ==========

// RefreshToken rotates the access token. Any failure ends the session.
func (m *Manager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	token := m.accessToken
	epoch := m.epoch
	m.mu.Unlock()
	if token == "" {
		return xerrors.ErrNotAuthenticated
	}

	resp, err := m.api.Refresh(ctx)
	if err == nil && resp.AccessToken == "" {
		err = fmt.Errorf("refresh: no access token: %w", xerrors.ErrUnexpectedResponse)
	}
	if err != nil {
		m.logger.Warn("token refresh failed, ending session", zap.Error(err))
		m.logoutIfEpoch(epoch, ReasonRefreshFailed)
		return fmt.Errorf("%w: %w", xerrors.ErrSessionExpired, err)
	}

	user := resp.User
	if user == nil {
		user, err = m.api.Me(api.WithBearer(ctx, resp.AccessToken))
		if err != nil {
			m.logoutIfEpoch(epoch, ReasonUserFailed)
			return fmt.Errorf("%w: %w", xerrors.ErrSessionExpired, err)
		}
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.Debug("discarding refresh result, session changed meanwhile")
		return xerrors.ErrSessionSuperseded
	}
	m.establishLocked(resp.AccessToken, user)
	state := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Debug("access token refreshed", zap.Int64("user_id", user.ID))
	m.notify(Event{Reason: ReasonRefresh, State: state})
	return nil
}

// LoadCurrentUser re-reads /auth/me. Failure ends the session.
func (m *Manager) LoadCurrentUser(ctx context.Context) error {
	m.mu.Lock()
	token := m.accessToken
	epoch := m.epoch
	m.mu.Unlock()
	if token == "" {
		return xerrors.ErrNotAuthenticated
	}

	user, err := m.api.Me(api.WithBearer(ctx, token))
	if err != nil {
		m.logger.Warn("failed to load current user, ending session", zap.Error(err))
		m.logoutIfEpoch(epoch, ReasonUserFailed)
		return fmt.Errorf("%w: %w", xerrors.ErrSessionExpired, err)
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return xerrors.ErrSessionSuperseded
	}
	m.user = user.Clone()
	m.persistUserLocked()
	state := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(Event{Reason: ReasonUserReloaded, State: state})
	return nil
}

// ========== Logout ==========

// Logout clears the session in memory and in the store. Safe to repeat.
func (m *Manager) Logout() {
	m.logout(ReasonLogout)
}

// HandleUnauthorized is called by the API client when the server rejects the
// session's credentials.
func (m *Manager) HandleUnauthorized(path string) {
	m.logger.Warn("credentials rejected, logging out", zap.String("path", path))
	m.logout(ReasonUnauthorized)
}

func (m *Manager) logout(reason Reason) {
	m.logoutWhen(reason, nil)
}

// logoutWhen clears the session if cond, evaluated under the lock, holds.
// A nil cond always logs out.
func (m *Manager) logoutWhen(reason Reason, cond func() bool) bool {
	m.mu.Lock()
	if cond != nil && !cond() {
		m.mu.Unlock()
		return false
	}
	m.epoch++
	m.clearSessionLocked()
	m.tempToken = ""
	m.methods = nil
	m.deleteLocked(KeyTempToken)
	state := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("logged out", zap.String("reason", string(reason)))
	m.notify(Event{Reason: reason, Destination: DestinationLogin, State: state})
	return true
}

// logoutIfEpoch ends the session only if no other logout or login happened
// since epoch was read, so a stale failure cannot end a newer session.
func (m *Manager) logoutIfEpoch(epoch uint64, reason Reason) {
	m.logoutWhen(reason, func() bool { return m.epoch == epoch })
}

func (m *Manager) clearSessionLocked() {
	m.accessToken = ""
	m.user = nil
	m.stopTimersLocked()
	m.deleteLocked(KeyAccessToken, KeyUserData)
}

// ========== Restore ==========

// Restore seeds the session from the store. It runs once; later calls only
// wait for the first to finish. Resolved() is closed afterwards in every case.
func (m *Manager) Restore(ctx context.Context) {
	m.restoreOnce.Do(func() {
		defer m.markResolved()
		m.restore(ctx)
	})
	<-m.resolved
}

func (m *Manager) markResolved() {
	m.resolveOnce.Do(func() { close(m.resolved) })
}

func (m *Manager) restore(ctx context.Context) {
	token, hasToken := m.read(ctx, KeyAccessToken)
	userData, hasUser := m.read(ctx, KeyUserData)
	tempToken, hasTemp := m.read(ctx, KeyTempToken)

	var user *auth.User
	restored := false

	if hasToken && hasUser {
		user = &auth.User{}
		if err := json.Unmarshal([]byte(userData), user); err != nil {
			m.logger.Warn("persisted user is corrupt, clearing", zap.Error(err))
			user = nil
		} else if expired, err := jwt.IsExpired(token, m.clock.Now()); err != nil || expired {
			m.logger.Info("persisted token expired or unreadable, clearing", zap.Error(err))
			user = nil
		} else {
			restored = true
		}
	} else if hasToken || hasUser {
		m.logger.Info("partial persisted session, clearing")
	}

	m.mu.Lock()
	if !restored && (hasToken || hasUser) {
		m.deleteLocked(KeyAccessToken, KeyUserData)
	}
	if restored && m.accessToken == "" {
		m.accessToken = token
		m.user = user
		m.lastActivity = m.clock.Now()
		m.startTimersLocked()
	}
	if hasTemp {
		if m.accessToken == "" {
			m.tempToken = tempToken
			m.methods = append([]string(nil), defaultMethods...)
		} else {
			m.deleteLocked(KeyTempToken)
		}
	}
	state := m.snapshotLocked()
	m.mu.Unlock()

	if restored {
		m.logger.Info("session restored", zap.Int64("user_id", user.ID))
		m.notify(Event{Reason: ReasonRestore, State: state})
		if m.revalidate {
			if err := m.LoadCurrentUser(ctx); err != nil {
				m.logger.Info("restored session rejected by server", zap.Error(err))
			}
		}
	}
}

// ========== Activity ==========

// Touch records user activity.
func (m *Manager) Touch() {
	now := m.clock.Now()
	m.mu.Lock()
	m.lastActivity = now
	m.mu.Unlock()
}

// CheckInactivity ends the session when the user has been idle longer than
// the inactivity threshold. It reports whether it logged out.
func (m *Manager) CheckInactivity() bool {
	var idle time.Duration
	expired := func() bool {
		if m.accessToken == "" {
			return false
		}
		idle = m.clock.Now().Sub(m.lastActivity)
		return idle > m.idleTimeout
	}
	if !m.logoutWhen(ReasonInactivity, expired) {
		return false
	}
	m.logger.Info("inactivity timeout", zap.Duration("idle", idle))
	return true
}

// Close stops the timers and removes the activity listener. The session
// itself (and its persisted copy) is left intact.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.stopTimersLocked()
	stop := m.stopActivity
	m.stopActivity = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	m.wg.Wait()
}

// ========== Helpers ==========

func (m *Manager) beginCall() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading++
	return m.epoch
}

func (m *Manager) endCall() {
	m.mu.Lock()
	m.loading--
	m.mu.Unlock()
}

func (m *Manager) read(ctx context.Context, key string) (string, bool) {
	v, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn("failed to read persisted session", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok && v != ""
}

// Store failures are logged, not returned: memory stays the source of truth
// for the running process.
func (m *Manager) persistLocked(key, value string) {
	if err := m.store.Set(context.Background(), key, value); err != nil {
		m.logger.Warn("failed to persist session", zap.String("key", key), zap.Error(err))
	}
}

func (m *Manager) persistUserLocked() {
	data, err := json.Marshal(m.user)
	if err != nil {
		m.logger.Warn("failed to marshal user", zap.Error(err))
		return
	}
	m.persistLocked(KeyUserData, string(data))
}

func (m *Manager) deleteLocked(keys ...string) {
	if err := m.store.Delete(context.Background(), keys...); err != nil {
		m.logger.Warn("failed to delete persisted session", zap.Strings("keys", keys), zap.Error(err))
	}
}
