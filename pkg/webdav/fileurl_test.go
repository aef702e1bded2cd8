package webdav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fruitsalade/webclient/pkg/resource"
)

type fileServer struct {
	signingKeyCalls int32
	gets            int32
	heads           int32
	signingFails    bool
}

func (s *fileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/ocs/"):
		atomic.AddInt32(&s.signingKeyCalls, 1)
		if s.signingFails {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"ocs":{"data":{"signing-key":"key"}}}`)
	case r.Method == http.MethodHead:
		atomic.AddInt32(&s.heads, 1)
	case r.Method == http.MethodGet:
		atomic.AddInt32(&s.gets, 1)
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "hello")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

var testFile = resource.Resource{ID: "s!a", FileID: "s!a", Name: "a.txt", Path: "/a.txt"}

func TestGetFileURLInlineNeverSigns(t *testing.T) {
	fs := &fileServer{}
	srv := httptest.NewServer(fs)
	defer srv.Close()
	client := newTestClient(srv, &User{ID: "1", Username: "alice"})

	u, err := client.GetFileURL(context.Background(), testSpace, testFile, FileURLOptions{
		Disposition:         DispositionInline,
		IsURLSigningEnabled: true,
		DoHeadRequest:       true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u, BlobPrefix) {
		t.Fatalf("expected blob url, got %q", u)
	}
	if atomic.LoadInt32(&fs.signingKeyCalls) != 0 || atomic.LoadInt32(&fs.heads) != 0 {
		t.Error("inline urls must not be signed or preflighted")
	}
	blob, ok := client.Blobs().Get(u)
	if !ok || string(blob.Data) != "hello" || blob.ContentType != "text/plain" {
		t.Errorf("unexpected blob %+v", blob)
	}
}

func TestGetFileURLSigned(t *testing.T) {
	fs := &fileServer{}
	srv := httptest.NewServer(fs)
	defer srv.Close()
	client := newTestClient(srv, &User{ID: "1", Username: "alice"})

	u, err := client.GetFileURL(context.Background(), testSpace, testFile, FileURLOptions{
		IsURLSigningEnabled: true,
		DoHeadRequest:       true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u, srv.URL+"/remote.php/dav/spaces/s%21n/a.txt?") {
		t.Errorf("unexpected url %q", u)
	}
	if !strings.Contains(u, "OC-Signature=") || !strings.Contains(u, "OC-Credential=alice") {
		t.Errorf("url is not signed: %q", u)
	}
	if atomic.LoadInt32(&fs.heads) != 1 {
		t.Errorf("expected one preflight, got %d", fs.heads)
	}
	if atomic.LoadInt32(&fs.gets) != 0 {
		t.Error("signed urls must not download content")
	}
}

func TestGetFileURLVersionUsesMetaPath(t *testing.T) {
	fs := &fileServer{}
	srv := httptest.NewServer(fs)
	defer srv.Close()
	client := newTestClient(srv, &User{ID: "1", Username: "alice"})

	u, err := client.GetFileURL(context.Background(), testSpace, testFile, FileURLOptions{
		IsURLSigningEnabled: true,
		Version:             "v1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u, srv.URL+"/remote.php/dav/meta/s%21a/v/v1?") {
		t.Errorf("unexpected url %q", u)
	}
}

func TestGetFileURLUnsignedFallsBackToBlob(t *testing.T) {
	tests := []struct {
		name    string
		user    *User
		signing bool
		fails   bool
	}{
		{"signing disabled", &User{Username: "alice"}, false, false},
		{"no user", nil, true, false},
		{"signing fails", &User{Username: "alice"}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fileServer{signingFails: tt.fails}
			srv := httptest.NewServer(fs)
			defer srv.Close()
			client := newTestClient(srv, tt.user)

			u, err := client.GetFileURL(context.Background(), testSpace, testFile, FileURLOptions{IsURLSigningEnabled: tt.signing})
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(u, BlobPrefix) {
				t.Errorf("expected blob url, got %q", u)
			}
			if atomic.LoadInt32(&fs.gets) != 1 {
				t.Errorf("expected one download, got %d", fs.gets)
			}
		})
	}
}

func TestGetFileURLKeepsDownloadURL(t *testing.T) {
	fs := &fileServer{}
	srv := httptest.NewServer(fs)
	defer srv.Close()
	client := newTestClient(srv, &User{Username: "alice"})

	r := testFile
	r.DownloadURL = "https://cdn.example.com/a.txt?token=x"
	u, err := client.GetFileURL(context.Background(), testSpace, r, FileURLOptions{IsURLSigningEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if u != r.DownloadURL {
		t.Errorf("expected download url, got %q", u)
	}
	if atomic.LoadInt32(&fs.signingKeyCalls) != 0 || atomic.LoadInt32(&fs.gets) != 0 {
		t.Error("download urls are used as is")
	}
}

func TestRevokeURL(t *testing.T) {
	blobs := NewBlobStore()
	client := New(Options{BaseURL: "https://cloud.example.com", Blobs: blobs})

	u := blobs.CreateObjectURL([]byte("x"), "text/plain")
	other := blobs.CreateObjectURL([]byte("y"), "text/plain")

	client.RevokeURL("https://cloud.example.com/remote.php/dav/a.txt")
	client.RevokeURL("")
	if blobs.Len() != 2 {
		t.Fatalf("non-blob urls must be ignored, %d blobs left", blobs.Len())
	}

	client.RevokeURL(u)
	if _, ok := blobs.Get(u); ok {
		t.Error("revoked blob still present")
	}
	if _, ok := blobs.Get(other); !ok {
		t.Error("unrelated blob was revoked")
	}
}
