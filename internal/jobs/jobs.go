// Package jobs starts bulk workers on behalf of the caller and reports
// their outcome.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fruitsalade/webclient/internal/bulk"
	"github.com/fruitsalade/webclient/internal/logging"
	"github.com/fruitsalade/webclient/internal/webworker"
	"github.com/fruitsalade/webclient/pkg/davpath"
	"github.com/fruitsalade/webclient/pkg/httperror"
	"github.com/fruitsalade/webclient/pkg/resource"
)

// LoadingTracker tracks pending background work.
type LoadingTracker interface {
	Register() (resolve func())
}

type noLoading struct{}

func (noLoading) Register() func() { return func() {} }

// Failure is a resource whose request failed.
type Failure struct {
	Resource resource.Resource
	Error    *httperror.HTTPError
}

// Result is the outcome of a job.
type Result struct {
	Successful []resource.Resource
	Failed     []Failure
}

// Callback receives the result of a job.
type Callback func(Result)

// Options configures the orchestrators.
type Options struct {
	ServerURL string
	// Headers returns the headers forwarded to the worker, including
	// Authorization.
	Headers            func() map[string]string
	ConcurrentRequests int
	Workers            *webworker.Store
	Loading            LoadingTracker
	// Handler is the worker body. Default bulk.NewHandler.
	Handler webworker.Handler
}

func (o *Options) setDefaults() {
	if o.Workers == nil {
		o.Workers = webworker.NewStore()
	}
	if o.Loading == nil {
		o.Loading = noLoading{}
	}
	if o.Handler == nil {
		o.Handler = bulk.NewHandler(bulk.Config{})
	}
	if o.ConcurrentRequests <= 0 {
		o.ConcurrentRequests = bulk.DefaultConcurrentRequests
	}
}

func (o Options) headers() map[string]string {
	if o.Headers == nil {
		return map[string]string{}
	}
	h := make(map[string]string)
	for k, v := range o.Headers() {
		h[k] = v
	}
	return h
}

// start runs one job in a new worker. The callback is invoked exactly once:
// with the worker's result, or with every resource failed when ctx ends
// first.
func start(ctx context.Context, opts Options, topic string, payload bulk.Payload, cb Callback) (string, error) {
	msg, err := webworker.Encode(topic, payload)
	if err != nil {
		return "", err
	}

	w := opts.Workers.CreateWorker(ctx, opts.Handler, webworker.Options{NeedsTokenRenewal: true})
	resolve := opts.Loading.Register()

	var once sync.Once
	finished := make(chan struct{})
	finish := func(report func()) {
		once.Do(func() {
			close(finished)
			opts.Workers.TerminateWorker(w.ID)
			resolve()
			report()
		})
	}

	w.OnMessage(func(b []byte) {
		finish(func() { cb(decodeResult(b, payload.Resources)) })
	})

	if err := w.Post(msg); err != nil {
		finish(func() {})
		return "", fmt.Errorf("post job: %w", err)
	}

	go func() {
		select {
		case <-finished:
		case <-ctx.Done():
			logging.Warn("job cancelled",
				zap.String("worker_id", w.ID),
				zap.String("topic", topic),
				zap.Error(ctx.Err()))
			finish(func() {
				cb(failAll(payload.Resources, fmt.Sprintf("job cancelled: %v", ctx.Err())))
			})
		}
	}()

	logging.Debug("job started",
		zap.String("worker_id", w.ID),
		zap.String("topic", topic),
		zap.Int("resources", len(payload.Resources)))
	return w.ID, nil
}

// failAll reports every resource failed with msg.
func failAll(resources []resource.Resource, msg string) Result {
	herr := httperror.New(httperror.ErrorData{Message: msg})
	result := Result{
		Successful: []resource.Resource{},
		Failed:     make([]Failure, 0, len(resources)),
	}
	for _, r := range resources {
		result.Failed = append(result.Failed, Failure{Resource: r, Error: herr})
	}
	return result
}

// decodeResult turns the worker's message into a Result. An unreadable
// message fails every resource of the job.
func decodeResult(b []byte, resources []resource.Resource) Result {
	var raw bulk.Result
	if err := json.Unmarshal(b, &raw); err != nil {
		logging.Error("malformed worker result", zap.Error(err))
		return failAll(resources, fmt.Sprintf("malformed worker result: %v", err))
	}

	result := Result{
		Successful: raw.Successful,
		Failed:     make([]Failure, 0, len(raw.Failed)),
	}
	if result.Successful == nil {
		result.Successful = []resource.Resource{}
	}
	for _, f := range raw.Failed {
		result.Failed = append(result.Failed, Failure{
			Resource: f.Resource,
			Error:    httperror.New(f.ErrorData),
		})
	}
	return result
}

// DeleteRequest describes a bulk delete.
type DeleteRequest struct {
	// Topic is bulk.TopicFileListDelete (default) or bulk.TopicTrashBinDelete.
	Topic     string
	Space     resource.Space
	Resources []resource.Resource
}

// DeleteJobs starts bulk delete workers.
type DeleteJobs struct {
	opts Options
}

// NewDeleteJobs creates a delete orchestrator.
func NewDeleteJobs(opts Options) *DeleteJobs {
	opts.setDefaults()
	return &DeleteJobs{opts: opts}
}

// StartWorker deletes req.Resources in a worker and reports the outcome to
// cb. It returns the worker id.
func (j *DeleteJobs) StartWorker(ctx context.Context, req DeleteRequest, cb Callback) (string, error) {
	topic := req.Topic
	switch topic {
	case "":
		topic = bulk.TopicFileListDelete
	case bulk.TopicFileListDelete, bulk.TopicTrashBinDelete:
	default:
		return "", fmt.Errorf("unsupported delete topic %q", topic)
	}

	return start(ctx, j.opts, topic, bulk.Payload{
		Space:              req.Space,
		Resources:          req.Resources,
		ConcurrentRequests: j.opts.ConcurrentRequests,
		BaseURL:            j.opts.ServerURL,
		Headers:            j.opts.headers(),
	}, cb)
}

// RestoreRequest describes a bulk restore from the trash bin.
type RestoreRequest struct {
	Space     resource.Space
	Resources []resource.Resource
	// MissingFolderPaths are created in order before anything is restored.
	MissingFolderPaths []string
}

// RestoreJobs starts bulk restore workers.
type RestoreJobs struct {
	opts Options
}

// NewRestoreJobs creates a restore orchestrator.
func NewRestoreJobs(opts Options) *RestoreJobs {
	opts.setDefaults()
	return &RestoreJobs{opts: opts}
}

// StartWorker restores req.Resources in a worker and reports the outcome to
// cb. It returns the worker id.
func (j *RestoreJobs) StartWorker(ctx context.Context, req RestoreRequest, cb Callback) (string, error) {
	headers := j.opts.headers()
	for k := range headers {
		if http.CanonicalHeaderKey(k) == "X-Request-Id" {
			delete(headers, k)
		}
	}

	return start(ctx, j.opts, bulk.TopicStartProcess, bulk.Payload{
		Space:              req.Space,
		Resources:          req.Resources,
		ConcurrentRequests: j.opts.ConcurrentRequests,
		MissingFolderPaths: req.MissingFolderPaths,
		BaseURL:            j.opts.ServerURL,
		Headers:            headers,
	}, cb)
}

// AncestorFolders returns the distinct parent folders of the resources,
// parents before children. The root is never included.
func AncestorFolders(resources []resource.Resource) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range resources {
		dir := davpath.Dir(r.Path)
		var chain []string
		for dir != "/" && dir != "" && dir != "." && !seen[dir] {
			seen[dir] = true
			chain = append(chain, dir)
			dir = davpath.Dir(dir)
		}
		for i := len(chain) - 1; i >= 0; i-- {
			out = append(out, chain[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.Count(out[i], "/") < strings.Count(out[j], "/")
	})
	return out
}
