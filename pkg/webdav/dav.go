package webdav

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fruitsalade/webclient/internal/logging"
	"github.com/fruitsalade/webclient/internal/metrics"
	"github.com/fruitsalade/webclient/pkg/davpath"
	"github.com/fruitsalade/webclient/pkg/httperror"
	"github.com/fruitsalade/webclient/pkg/resource"
	"github.com/fruitsalade/webclient/pkg/retry"
)

// DAVRoot is the path of the WebDAV endpoint below the server URL.
const DAVRoot = "/remote.php/dav"

// WebDAV methods not defined in net/http.
const (
	MethodPropfind  = "PROPFIND"
	MethodProppatch = "PROPPATCH"
	MethodReport    = "REPORT"
	MethodMkcol     = "MKCOL"
	MethodCopy      = "COPY"
	MethodMove      = "MOVE"
)

var idempotentMethods = map[string]bool{
	http.MethodGet:  true,
	http.MethodHead: true,
	MethodPropfind:  true,
	MethodReport:    true,
}

// DAV is the low-level WebDAV transport shared by all factories.
type DAV struct {
	baseURL     string
	davURL      string
	davPrefix   string
	httpClient  *http.Client
	token       TokenSource
	language    string
	initiatorID string
	headers     map[string]string
	retryConfig retry.Config
}

// NewDAV creates a new transport.
func NewDAV(opts Options) *DAV {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	davURL := baseURL + DAVRoot

	prefix := DAVRoot
	if i := strings.Index(baseURL, "://"); i >= 0 {
		if j := strings.Index(baseURL[i+3:], "/"); j >= 0 {
			prefix = baseURL[i+3+j:] + DAVRoot
		}
	}

	return &DAV{
		baseURL:     baseURL,
		davURL:      davURL,
		davPrefix:   prefix,
		httpClient:  opts.HTTPClient,
		token:       opts.AccessToken,
		language:    opts.Language,
		initiatorID: opts.ClientInitiatorID,
		headers:     opts.Headers,
		retryConfig: opts.Retry,
	}
}

// BaseURL returns the server URL.
func (d *DAV) BaseURL() string {
	return d.baseURL
}

// FileURL returns the absolute URL of a DAV path. A trailing slash is kept.
func (d *DAV) FileURL(p string) string {
	opts := davpath.Options{LeadingSlash: true, TrailingSlash: strings.HasSuffix(p, "/")}
	return d.davURL + davpath.Encode(davpath.JoinWith(opts, p))
}

// AuthHeader returns the Authorization header value for a request in
// space. Public link spaces authenticate with their password, if any.
func AuthHeader(token string, space *resource.Space) string {
	if space != nil && space.IsPublic() {
		if space.PublicLinkPassword == "" {
			return ""
		}
		creds := "public:" + space.PublicLinkPassword
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
	}
	if token != "" {
		return "Bearer " + token
	}
	return ""
}

func (d *DAV) accessToken() string {
	if d.token == nil {
		return ""
	}
	return d.token.Token()
}

// request describes a single DAV call.
type request struct {
	method string
	path   string
	// url overrides path with an absolute URL.
	url     string
	body    []byte
	reader  io.Reader
	headers map[string]string
	space   *resource.Space
}

// do performs req and returns the response of a 2xx status. The caller
// closes the body. Idempotent methods are retried on network errors and
// retryable statuses. A request id carried by ctx is sent as X-Request-ID;
// otherwise a new one is generated for the request.
func (d *DAV) do(ctx context.Context, req request) (*http.Response, error) {
	target := req.url
	if target == "" {
		target = d.FileURL(req.path)
	}

	reqID := logging.GetRequestID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
		ctx = logging.WithRequestID(ctx, reqID)
	}
	log := logging.WithContext(ctx)

	attempt := 0
	return retry.DoWithResult(ctx, d.retryFor(req), func() (*http.Response, error) {
		attempt++
		if attempt > 1 {
			metrics.RecordDAVRetry(req.method)
		}

		var body io.Reader
		if req.reader != nil {
			body = req.reader
		} else if req.body != nil {
			body = bytes.NewReader(req.body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
		if err != nil {
			return nil, err
		}
		d.applyHeaders(httpReq, req, reqID)

		start := time.Now()
		resp, err := d.httpClient.Do(httpReq)
		if err != nil {
			metrics.RecordDAVRequest(req.method, 0, time.Since(start))
			log.Debug("dav request failed",
				zap.String("method", req.method),
				zap.String("url", target),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return nil, retry.Retryable(fmt.Errorf("%s %s: %w", req.method, target, err))
		}
		metrics.RecordDAVRequest(req.method, resp.StatusCode, time.Since(start))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			herr := responseError(resp)
			resp.Body.Close()
			log.Debug("dav request rejected",
				zap.String("method", req.method),
				zap.String("url", target),
				zap.Int("status", resp.StatusCode),
				zap.String("x_req_id", herr.XReqID),
			)
			if retry.RetryableStatus(resp.StatusCode) {
				return nil, retry.Retryable(herr)
			}
			return nil, herr
		}
		return resp, nil
	})
}

func (d *DAV) retryFor(req request) retry.Config {
	if !idempotentMethods[req.method] || req.reader != nil {
		return retry.Disabled()
	}
	return d.retryConfig
}

func (d *DAV) applyHeaders(httpReq *http.Request, req request, reqID string) {
	h := httpReq.Header
	if d.language != "" {
		h.Set("Accept-Language", d.language)
	}
	if d.initiatorID != "" {
		h.Set("Initiator-ID", d.initiatorID)
	}
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("X-Request-ID", reqID)
	if auth := AuthHeader(d.accessToken(), req.space); auth != "" {
		h.Set("Authorization", auth)
	}
	for k, v := range d.headers {
		if v == "" {
			continue
		}
		if k == "Authorization" && req.space != nil && req.space.IsPublic() {
			continue
		}
		h.Set(k, v)
	}
	for k, v := range req.headers {
		h.Set(k, v)
	}
}

type davError struct {
	Message string `xml:"message"`
}

// responseError converts a failed response into an HTTPError. The message
// is taken from the DAV error body when there is one.
func responseError(resp *http.Response) *httperror.HTTPError {
	data := httperror.ErrorData{
		StatusCode: resp.StatusCode,
		XReqID:     resp.Header.Get("X-Request-Id"),
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var de davError
	if len(body) > 0 && xml.Unmarshal(body, &de) == nil {
		data.Message = strings.TrimSpace(de.Message)
	}
	return httperror.New(data)
}

// PropfindOptions controls a PROPFIND request.
type PropfindOptions struct {
	// Depth is "0", "1" or "infinity". Default "1".
	Depth      string
	Properties []resource.Property
	// ExtraProperties are custom "prefix:name" properties in the
	// ownCloud namespace.
	ExtraProperties []string
	Space           *resource.Space
}

// Propfind lists the properties of p and, depending on depth, its children.
// The first entry is p itself.
func (d *DAV) Propfind(ctx context.Context, p string, opts PropfindOptions) ([]resource.RawEntry, error) {
	if opts.Depth == "" {
		opts.Depth = "1"
	}
	body, err := propfindBody(opts.Properties, opts.ExtraProperties)
	if err != nil {
		return nil, err
	}
	resp, err := d.do(ctx, request{
		method:  MethodPropfind,
		path:    p,
		body:    body,
		space:   opts.Space,
		headers: map[string]string{"Depth": opts.Depth, "Content-Type": "application/xml; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return d.decodeMultistatus(resp.Body)
}

// Report sends a REPORT request and returns the decoded entries together
// with the response headers.
func (d *DAV) Report(ctx context.Context, p string, body []byte) ([]resource.RawEntry, http.Header, error) {
	resp, err := d.do(ctx, request{
		method:  MethodReport,
		path:    p,
		body:    body,
		headers: map[string]string{"Content-Type": "application/xml; charset=utf-8"},
	})
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	entries, err := d.decodeMultistatus(resp.Body)
	return entries, resp.Header, err
}

// Proppatch sets the given properties on p.
func (d *DAV) Proppatch(ctx context.Context, p string, props map[resource.Property]string, space *resource.Space) error {
	body, err := proppatchBody(props)
	if err != nil {
		return err
	}
	return d.discard(d.do(ctx, request{
		method:  MethodProppatch,
		path:    p,
		body:    body,
		space:   space,
		headers: map[string]string{"Content-Type": "application/xml; charset=utf-8"},
	}))
}

// Mkcol creates the collection p.
func (d *DAV) Mkcol(ctx context.Context, p string, space *resource.Space) error {
	return d.discard(d.do(ctx, request{method: MethodMkcol, path: p, space: space}))
}

// Delete removes p.
func (d *DAV) Delete(ctx context.Context, p string, space *resource.Space) error {
	return d.discard(d.do(ctx, request{method: http.MethodDelete, path: p, space: space}))
}

// Copy copies source to destination.
func (d *DAV) Copy(ctx context.Context, source, destination string, overwrite bool, space *resource.Space) error {
	return d.transfer(ctx, MethodCopy, source, destination, overwrite, space)
}

// Move moves source to destination.
func (d *DAV) Move(ctx context.Context, source, destination string, overwrite bool, space *resource.Space) error {
	return d.transfer(ctx, MethodMove, source, destination, overwrite, space)
}

func (d *DAV) transfer(ctx context.Context, method, source, destination string, overwrite bool, space *resource.Space) error {
	ow := "F"
	if overwrite {
		ow = "T"
	}
	return d.discard(d.do(ctx, request{
		method: method,
		path:   source,
		space:  space,
		headers: map[string]string{
			"Destination": d.FileURL(destination),
			"Overwrite":   ow,
		},
	}))
}

// Get downloads p. The caller closes the body.
func (d *DAV) Get(ctx context.Context, p string, headers map[string]string, space *resource.Space) (*http.Response, error) {
	return d.do(ctx, request{method: http.MethodGet, path: p, headers: headers, space: space})
}

// Head checks that the absolute URL u exists.
func (d *DAV) Head(ctx context.Context, u string, space *resource.Space) error {
	return d.discard(d.do(ctx, request{method: http.MethodHead, url: u, space: space}))
}

// Put uploads content to p and returns the response headers.
func (d *DAV) Put(ctx context.Context, p string, content io.Reader, headers map[string]string, space *resource.Space) (http.Header, error) {
	resp, err := d.do(ctx, request{method: http.MethodPut, path: p, reader: content, headers: headers, space: space})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.Header, nil
}

func (d *DAV) discard(resp *http.Response, err error) error {
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
