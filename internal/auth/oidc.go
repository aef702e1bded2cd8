package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fruitsalade/webclient/internal/logging"
)

// OIDCConfig holds OIDC provider configuration.
type OIDCConfig struct {
	IssuerURL    string // e.g. https://idp.example.com/realms/cloud
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// OIDCRefresher refreshes access tokens with an OAuth2 refresh token.
type OIDCRefresher struct {
	config *oauth2.Config

	mu           sync.Mutex
	refreshToken string
}

// NewOIDCRefresher discovers the provider at cfg.IssuerURL.
func NewOIDCRefresher(ctx context.Context, cfg OIDCConfig) (*OIDCRefresher, error) {
	if cfg.RefreshToken == "" {
		return nil, errors.New("oidc: refresh token is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider init: %w", err)
	}

	logging.Info("OIDC provider initialized",
		zap.String("issuer", cfg.IssuerURL),
		zap.String("client_id", cfg.ClientID))

	return &OIDCRefresher{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, oidc.ScopeOfflineAccess},
		},
		refreshToken: cfg.RefreshToken,
	}, nil
}

// Refresh exchanges the refresh token for a new access token. A rotated
// refresh token replaces the old one.
func (r *OIDCRefresher) Refresh(ctx context.Context) (string, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: r.refreshToken}).Token()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("refresh token: %w", err)
	}
	if tok.RefreshToken != "" {
		r.refreshToken = tok.RefreshToken
	}
	return tok.AccessToken, tok.Expiry, nil
}
