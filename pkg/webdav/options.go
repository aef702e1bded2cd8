package webdav

import (
	"net/http"
	"sync"

	"github.com/fruitsalade/webclient/pkg/retry"
)

// TokenSource yields the current access token. It is consulted on every
// request so a refreshed token takes effect immediately.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource holding a replaceable token.
type StaticToken struct {
	mu    sync.RWMutex
	token string
}

// NewStaticToken returns a StaticToken initialized with token.
func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: token}
}

// Token returns the current token.
func (s *StaticToken) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the token.
func (s *StaticToken) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// User is the signed-in user. A nil user means anonymous access, e.g. via a
// public link.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Options configures the WebDAV facade.
type Options struct {
	// BaseURL is the server URL, e.g. https://cloud.example.com.
	BaseURL           string
	AccessToken       TokenSource
	Language          string
	ClientInitiatorID string
	// Headers are sent with every request. They override the defaults.
	Headers     map[string]string
	CurrentUser func() *User
	HTTPClient  *http.Client
	// Retry applies to idempotent requests only. Zero value means defaults.
	Retry retry.Config
	Blobs *BlobStore
}

func (o Options) user() *User {
	if o.CurrentUser == nil {
		return nil
	}
	return o.CurrentUser()
}
