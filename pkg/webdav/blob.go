package webdav

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fruitsalade/webclient/internal/metrics"
)

// BlobPrefix marks URLs that refer to locally held content.
const BlobPrefix = "blob:"

// Blob is content materialized in memory.
type Blob struct {
	Data        []byte
	ContentType string
}

// BlobStore holds downloaded content behind opaque blob: URLs until the
// URL is revoked.
type BlobStore struct {
	mu    sync.Mutex
	blobs map[string]Blob
}

// NewBlobStore creates an empty store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]Blob)}
}

// CreateObjectURL stores data and returns a new blob: URL for it.
func (s *BlobStore) CreateObjectURL(data []byte, contentType string) string {
	url := BlobPrefix + uuid.NewString()
	s.mu.Lock()
	s.blobs[url] = Blob{Data: data, ContentType: contentType}
	n := len(s.blobs)
	s.mu.Unlock()
	metrics.SetBlobURLsActive(n)
	return url
}

// Get returns the content behind url.
func (s *BlobStore) Get(url string) (Blob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[url]
	return b, ok
}

// RevokeObjectURL releases url. Unknown URLs are ignored.
func (s *BlobStore) RevokeObjectURL(url string) {
	if !strings.HasPrefix(url, BlobPrefix) {
		return
	}
	s.mu.Lock()
	delete(s.blobs, url)
	n := len(s.blobs)
	s.mu.Unlock()
	metrics.SetBlobURLsActive(n)
}

// Len returns the number of live blob URLs.
func (s *BlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}
