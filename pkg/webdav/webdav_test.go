package webdav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fruitsalade/webclient/internal/logging"
	"github.com/fruitsalade/webclient/pkg/httperror"
	"github.com/fruitsalade/webclient/pkg/resource"
	"github.com/fruitsalade/webclient/pkg/retry"
)

func multistatusXML(responses ...string) string {
	return `<?xml version="1.0"?><d:multistatus xmlns:d="DAV:" xmlns:oc="http://owncloud.org/ns" xmlns:s="http://sabredav.org/ns">` +
		strings.Join(responses, "") + `</d:multistatus>`
}

func davResponse(href, props string) string {
	return `<d:response><d:href>` + href + `</d:href><d:propstat><d:prop>` + props +
		`</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat>` +
		`<d:propstat><d:prop><oc:missing-prop/></d:prop><d:status>HTTP/1.1 404 Not Found</d:status></d:propstat></d:response>`
}

func writeMultistatus(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	io.WriteString(w, body)
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1}
}

func newTestClient(srv *httptest.Server, user *User) *WebDAV {
	return New(Options{
		BaseURL:           srv.URL,
		AccessToken:       NewStaticToken("token"),
		Language:          "de",
		ClientInitiatorID: "initiator",
		CurrentUser:       func() *User { return user },
		HTTPClient:        srv.Client(),
		Retry:             fastRetry(),
	})
}

var testSpace = resource.NewSpace("s!n", "Personal", resource.DriveTypePersonal)

func TestListFilesDecodesMultistatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != MethodPropfind || r.URL.Path != "/remote.php/dav/spaces/s!n/docs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Depth") != "1" {
			t.Errorf("expected depth 1, got %q", r.Header.Get("Depth"))
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Accept-Language") != "de" || r.Header.Get("Initiator-ID") != "initiator" {
			t.Errorf("missing default headers: %v", r.Header)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "<oc:fileid />") {
			t.Errorf("propfind body misses fileid: %s", body)
		}
		writeMultistatus(w, multistatusXML(
			davResponse("/remote.php/dav/spaces/s%21n/docs/",
				`<oc:fileid>s!docs</oc:fileid><d:resourcetype><d:collection/></d:resourcetype><oc:size>2048</oc:size>`),
			davResponse("/remote.php/dav/spaces/s%21n/docs/report%20final.tar.gz",
				`<oc:fileid>s!file</oc:fileid><d:resourcetype/><d:getcontentlength>512</d:getcontentlength>`+
					`<oc:favorite>1</oc:favorite><oc:share-types><oc:share-type>3</oc:share-type></oc:share-types>`+
					`<d:lockdiscovery><d:activelock><d:owner><d:href>bob</d:href></d:owner><d:locktime>now</d:locktime></d:activelock></d:lockdiscovery>`),
		))
	}))
	defer srv.Close()

	result, err := newTestClient(srv, nil).ListFiles(context.Background(), testSpace, "/docs", ListFilesOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Resource.IsFolder || result.Resource.Size != "2048" || result.Resource.Path != "/docs" {
		t.Errorf("unexpected folder %+v", result.Resource)
	}
	if len(result.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(result.Children))
	}
	child := result.Children[0]
	if child.Name != "report final.tar.gz" || child.Extension != "tar.gz" {
		t.Errorf("unexpected name/extension %q/%q", child.Name, child.Extension)
	}
	if child.Path != "/docs/report final.tar.gz" {
		t.Errorf("unexpected path %q", child.Path)
	}
	if !child.Starred || !child.Locked || child.LockOwner != "bob" {
		t.Errorf("unexpected flags %+v", child)
	}
	if len(child.ShareTypes) != 1 || child.ShareTypes[0] != 3 {
		t.Errorf("unexpected share types %v", child.ShareTypes)
	}
}

func TestListFilesTrash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/remote.php/dav/spaces/trash-bin/s!n" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeMultistatus(w, multistatusXML(
			davResponse("/remote.php/dav/spaces/trash-bin/s!n/", `<d:resourcetype><d:collection/></d:resourcetype>`),
			davResponse("/remote.php/dav/spaces/trash-bin/s!n/item1",
				`<oc:trashbin-original-filename>a.txt</oc:trashbin-original-filename>`+
					`<oc:trashbin-original-location>docs/a.txt</oc:trashbin-original-location>`+
					`<oc:trashbin-delete-datetime>2024-01-01</oc:trashbin-delete-datetime>`),
		))
	}))
	defer srv.Close()

	result, err := newTestClient(srv, nil).ListFiles(context.Background(), testSpace, "", ListFilesOptions{Trash: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(result.Children))
	}
	item := result.Children[0]
	if item.ID != "item1" || item.Path != "/docs/a.txt" || item.DDate != "2024-01-01" {
		t.Errorf("unexpected trash item %+v", item)
	}
	if !resource.CanBeRestored(item) {
		t.Error("trash items are restorable")
	}
}

func TestListFilesCorrectsPathByFileID(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case "/remote.php/dav/spaces/s!n/old":
			w.WriteHeader(http.StatusNotFound)
		case "/remote.php/dav/meta/s!moved":
			writeMultistatus(w, multistatusXML(
				davResponse("/remote.php/dav/meta/s!moved", `<oc:meta-path-for-user>/new</oc:meta-path-for-user>`),
			))
		case "/remote.php/dav/spaces/s!n/new":
			writeMultistatus(w, multistatusXML(
				davResponse("/remote.php/dav/spaces/s!n/new/", `<oc:fileid>s!moved</oc:fileid><d:resourcetype><d:collection/></d:resourcetype>`),
			))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	result, err := newTestClient(srv, nil).ListFiles(context.Background(), testSpace, "/old", ListFilesOptions{FileID: "s!moved"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Resource.Path != "/new" {
		t.Errorf("expected corrected path /new, got %q", result.Resource.Path)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestErrorCarriesMessageAndRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req-42")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `<?xml version="1.0"?><d:error xmlns:d="DAV:" xmlns:s="http://sabredav.org/ns">`+
			`<s:exception>Forbidden</s:exception><s:message>no permission to delete</s:message></d:error>`)
	}))
	defer srv.Close()

	err := newTestClient(srv, nil).DeleteFile(context.Background(), testSpace, "/a.txt")
	he, ok := httperror.As(err)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.StatusCode != http.StatusForbidden || he.Message != "no permission to delete" || he.XReqID != "req-42" {
		t.Errorf("unexpected error %+v", he)
	}
}

func TestRequestIDFromContext(t *testing.T) {
	var mu sync.Mutex
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids = append(ids, r.Header.Get("X-Request-ID"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	client := newTestClient(srv, nil)

	ctx := logging.WithRequestID(context.Background(), "req-ctx")
	if err := client.DeleteFile(ctx, testSpace, "/a.txt"); err != nil {
		t.Fatal(err)
	}
	if err := client.DeleteFile(context.Background(), testSpace, "/b.txt"); err != nil {
		t.Fatal(err)
	}
	if err := client.DeleteFile(context.Background(), testSpace, "/c.txt"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ids) != 3 || ids[0] != "req-ctx" {
		t.Fatalf("expected context request id first, got %v", ids)
	}
	if ids[1] == "" || ids[1] == ids[2] {
		t.Errorf("expected fresh request ids, got %v", ids[1:])
	}
}

func TestRetryOnlyIdempotentMethods(t *testing.T) {
	var propfinds, deletes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case MethodPropfind:
			if atomic.AddInt32(&propfinds, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			writeMultistatus(w, multistatusXML(davResponse("/remote.php/dav/spaces/s!n/a.txt", `<oc:fileid>s!a</oc:fileid>`)))
		case http.MethodDelete:
			atomic.AddInt32(&deletes, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()
	client := newTestClient(srv, nil)

	if _, err := client.GetFileInfo(context.Background(), testSpace, "/a.txt", ListFilesOptions{}); err != nil {
		t.Fatalf("expected propfind to succeed after retries: %v", err)
	}
	if got := atomic.LoadInt32(&propfinds); got != 3 {
		t.Errorf("expected 3 propfind attempts, got %d", got)
	}

	err := client.DeleteFile(context.Background(), testSpace, "/a.txt")
	if he, ok := httperror.As(err); !ok || he.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 HTTPError, got %v", err)
	}
	if got := atomic.LoadInt32(&deletes); got != 1 {
		t.Errorf("delete must not be retried, got %d attempts", got)
	}
}

func TestRestoreFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != MethodMove || r.URL.Path != "/remote.php/dav/spaces/trash-bin/s!n/item1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		wantDest := "/remote.php/dav/spaces/s%21n/docs/a%20b.txt"
		if !strings.HasSuffix(r.Header.Get("Destination"), wantDest) {
			t.Errorf("unexpected destination %q", r.Header.Get("Destination"))
		}
		if r.Header.Get("Overwrite") != "F" {
			t.Errorf("unexpected overwrite %q", r.Header.Get("Overwrite"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	if err := newTestClient(srv, nil).RestoreFile(context.Background(), testSpace, "item1", "/docs/a b.txt", false); err != nil {
		t.Fatal(err)
	}
}

func TestListFileVersionsSkipsCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/remote.php/dav/meta/s!a/v" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeMultistatus(w, multistatusXML(
			davResponse("/remote.php/dav/meta/s!a/v/", `<d:resourcetype><d:collection/></d:resourcetype>`),
			davResponse("/remote.php/dav/meta/s!a/v/v1", `<d:getcontentlength>10</d:getcontentlength>`),
			davResponse("/remote.php/dav/meta/s!a/v/v2", `<d:getcontentlength>20</d:getcontentlength>`),
		))
	}))
	defer srv.Close()

	versions, err := newTestClient(srv, nil).ListFileVersions(context.Background(), "s!a")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[0].Name != "v1" || versions[1].Size != "20" {
		t.Errorf("unexpected versions %+v", versions)
	}
}

func TestSearchReadsTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method != MethodReport || r.URL.Path != "/remote.php/dav/spaces/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if !strings.Contains(string(body), "<oc:pattern>a &amp; b</oc:pattern>") {
			t.Errorf("pattern not escaped: %s", body)
		}
		w.Header().Set("Content-Range", "rows 0-0/57")
		writeMultistatus(w, multistatusXML(
			davResponse("/remote.php/dav/spaces/s!n/a.txt", `<oc:highlights>a &lt;mark&gt;b&lt;/mark&gt;</oc:highlights>`),
		))
	}))
	defer srv.Close()

	result, err := newTestClient(srv, nil).Search(context.Background(), "a & b", SearchOptions{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if result.TotalResults != 57 || len(result.Resources) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !resource.IsSearchResource(result.Resources[0]) || result.Resources[0].Highlights != "a <mark>b</mark>" {
		t.Errorf("unexpected search resource %+v", result.Resources[0])
	}
}

func TestSetFavorite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method != MethodProppatch {
			t.Errorf("unexpected method %s", r.Method)
		}
		if !strings.Contains(string(body), `<favorite xmlns="http://owncloud.org/ns">1</favorite>`) {
			t.Errorf("unexpected body %s", body)
		}
		writeMultistatus(w, multistatusXML())
	}))
	defer srv.Close()

	r := resource.Resource{Path: "/a.txt"}
	if err := newTestClient(srv, nil).SetFavorite(context.Background(), testSpace, r, true); err != nil {
		t.Fatal(err)
	}
}

func TestListFavoriteFilesUsesCurrentUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != MethodReport || r.URL.Path != "/remote.php/dav/files/alice" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeMultistatus(w, multistatusXML(
			davResponse("/remote.php/dav/files/alice/docs/a.txt", `<oc:favorite>1</oc:favorite>`),
		))
	}))
	defer srv.Close()

	favs, err := newTestClient(srv, &User{ID: "1", Username: "alice"}).ListFavoriteFiles(context.Background(), ListFavoriteFilesOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(favs) != 1 || favs[0].Path != "/docs/a.txt" || !favs[0].Starred {
		t.Errorf("unexpected favorites %+v", favs)
	}
}

func TestPutFileContentsConditionalHeaders(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			mu.Lock()
			seen = append(seen, r.Header.Get("If-Match")+"|"+r.Header.Get("If-None-Match"))
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		case MethodPropfind:
			writeMultistatus(w, multistatusXML(davResponse("/remote.php/dav/spaces/s!n/a.txt", `<oc:fileid>s!a</oc:fileid>`)))
		}
	}))
	defer srv.Close()
	client := newTestClient(srv, nil)

	cases := []PutFileContentsOptions{
		{Content: strings.NewReader("x")},
		{Content: strings.NewReader("x"), Overwrite: true},
		{Content: strings.NewReader("x"), PreviousEntityTag: `"e1"`},
	}
	for _, opts := range cases {
		r, err := client.PutFileContents(context.Background(), testSpace, "/a.txt", opts)
		if err != nil {
			t.Fatal(err)
		}
		if r.ID != "s!a" {
			t.Errorf("expected uploaded resource, got %+v", r)
		}
	}
	want := []string{"|*", "|", `"e1"|`}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("upload %d: headers %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestPublicSpaceUsesBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "public" || pass != "secret" {
			t.Errorf("expected public basic auth, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	space := resource.NewPublicSpace("tok", "secret")
	if _, err := newTestClient(srv, nil).CreateFolder(context.Background(), space, "/new", false); err != nil {
		t.Fatal(err)
	}
}

func TestAuthHeader(t *testing.T) {
	public := resource.NewPublicSpace("tok", "")
	tests := []struct {
		name  string
		token string
		space *resource.Space
		want  string
	}{
		{"bearer", "t", nil, "Bearer t"},
		{"no token", "", nil, ""},
		{"public without password", "t", &public, ""},
		{"personal space", "t", &testSpace, "Bearer t"},
	}
	for _, tt := range tests {
		if got := AuthHeader(tt.token, tt.space); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}
