// Package auth keeps the access token of the client fresh.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/fruitsalade/webclient/internal/logging"
	"github.com/fruitsalade/webclient/internal/metrics"
)

const (
	defaultCheckInterval = time.Minute
	defaultRefreshMargin = 5 * time.Minute
)

// ErrNoRefresher is returned by Refresh when no refresher is configured.
var ErrNoRefresher = errors.New("auth: no token refresher configured")

// Refresher obtains a new access token.
type Refresher interface {
	Refresh(ctx context.Context) (token string, expiry time.Time, err error)
}

// TokenExpiry returns the exp claim of a JWT access token. The signature is
// not verified; the server does that.
func TokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Refresher may be nil, in which case the token is never refreshed.
	Refresher Refresher
	// CheckInterval is how often Start checks the expiry. Default 1m.
	CheckInterval time.Duration
	// RefreshMargin refreshes tokens this long before they expire. Default 5m.
	RefreshMargin time.Duration
}

// Manager holds the current access token and refreshes it before expiry.
type Manager struct {
	mu        sync.RWMutex
	token     string
	expiry    time.Time
	listeners []func(token string)

	refresher Refresher
	interval  time.Duration
	margin    time.Duration
	now       func() time.Time
}

// NewManager creates a token manager for token.
func NewManager(token string, cfg ManagerConfig) *Manager {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.RefreshMargin == 0 {
		cfg.RefreshMargin = defaultRefreshMargin
	}
	m := &Manager{
		refresher: cfg.Refresher,
		interval:  cfg.CheckInterval,
		margin:    cfg.RefreshMargin,
		now:       time.Now,
	}
	m.set(token, time.Time{})
	return m
}

// Token returns the current access token.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Expiry returns the expiry of the current token, or the zero time when
// unknown.
func (m *Manager) Expiry() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiry
}

// OnRefresh registers fn to be called with every refreshed token.
func (m *Manager) OnRefresh(fn func(token string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// set stores token. An explicit expiry wins over the token's exp claim.
func (m *Manager) set(token string, expiry time.Time) {
	if expiry.IsZero() {
		expiry, _ = TokenExpiry(token)
	}
	m.mu.Lock()
	m.token = token
	m.expiry = expiry
	m.mu.Unlock()
}

// NeedsRefresh reports whether the token expires within the refresh margin.
// Tokens without a known expiry never need a refresh.
func (m *Manager) NeedsRefresh() bool {
	exp := m.Expiry()
	if exp.IsZero() {
		return false
	}
	return m.now().Add(m.margin).After(exp)
}

// Refresh obtains a new token and notifies the listeners.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.refresher == nil {
		return ErrNoRefresher
	}
	token, expiry, err := m.refresher.Refresh(ctx)
	metrics.RecordTokenRefresh(err == nil)
	if err != nil {
		return err
	}
	m.set(token, expiry)

	m.mu.RLock()
	listeners := append([]func(string){}, m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(token)
	}
	logging.Info("access token refreshed", zap.Time("expires_at", m.Expiry()))
	return nil
}

// Start checks the token periodically and refreshes it when it is about to
// expire. Failures are logged and retried on the next tick.
func (m *Manager) Start(ctx context.Context) {
	if m.refresher == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !m.NeedsRefresh() {
					continue
				}
				if err := m.Refresh(ctx); err != nil {
					logging.Error("token refresh failed", zap.Error(err))
				}
			}
		}
	}()
}
