package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/fruitsalade/webclient/internal/logging"
	"github.com/fruitsalade/webclient/internal/webworker"
	"github.com/fruitsalade/webclient/pkg/davpath"
	"github.com/fruitsalade/webclient/pkg/httperror"
	"github.com/fruitsalade/webclient/pkg/resource"
	"github.com/fruitsalade/webclient/pkg/retry"
	"github.com/fruitsalade/webclient/pkg/webdav"
)

// Config configures the transport of the facade a job builds.
type Config struct {
	HTTPClient *http.Client
	Retry      retry.Config
}

// NewHandler returns the worker body for delete and restore jobs. It runs
// exactly one job, posts its Result and returns. Token updates received
// while the job runs apply to its remaining requests.
func NewHandler(cfg Config) webworker.Handler {
	return func(ctx context.Context, port *webworker.Port) {
		h := &handler{cfg: cfg, token: webdav.NewStaticToken("")}
		h.run(ctx, port)
	}
}

type handler struct {
	cfg   Config
	token *webdav.StaticToken
}

func (h *handler) run(ctx context.Context, port *webworker.Port) {
	log := logging.WithContext(ctx)
	done := make(chan Result, 1)
	started := false

	for {
		select {
		case <-ctx.Done():
			return
		case result := <-done:
			out, err := json.Marshal(result)
			if err != nil {
				log.Error("encode result", zap.Error(err))
				return
			}
			port.Post(out)
			return
		case b := <-port.Messages():
			msg, err := webworker.Decode(b)
			if err != nil {
				log.Warn("ignoring malformed message", zap.Error(err))
				continue
			}

			switch msg.Topic {
			case TopicTokenUpdate:
				var u webworker.TokenUpdate
				if err := json.Unmarshal(msg.Data, &u); err != nil {
					log.Warn("ignoring malformed token update", zap.Error(err))
					continue
				}
				h.token.Set(u.AccessToken)
				log.Debug("access token updated")
			case TopicFileListDelete, TopicTrashBinDelete, TopicStartProcess:
				if started {
					log.Warn("job already running", zap.String("topic", msg.Topic))
					continue
				}
				var p Payload
				if err := json.Unmarshal(msg.Data, &p); err != nil {
					log.Error("malformed job payload", zap.String("topic", msg.Topic), zap.Error(err))
					done <- newResult()
					started = true
					continue
				}
				started = true
				topic := msg.Topic
				go func() {
					done <- h.execute(ctx, topic, p)
				}()
			default:
				log.Warn("unknown topic", zap.String("topic", msg.Topic))
			}
		}
	}
}

// client builds the facade for p. A bearer Authorization header seeds the
// token so later token updates can replace it.
func (h *handler) client(p Payload) *webdav.WebDAV {
	headers := make(map[string]string, len(p.Headers))
	for k, v := range p.Headers {
		k = http.CanonicalHeaderKey(k)
		if token, ok := strings.CutPrefix(v, "Bearer "); ok && k == "Authorization" {
			if h.token.Token() == "" {
				h.token.Set(token)
			}
			continue
		}
		headers[k] = v
	}

	return webdav.New(webdav.Options{
		BaseURL:     p.BaseURL,
		AccessToken: h.token,
		Headers:     headers,
		HTTPClient:  h.cfg.HTTPClient,
		Retry:       h.cfg.Retry,
	})
}

func (h *handler) execute(ctx context.Context, topic string, p Payload) Result {
	client := h.client(p)

	var result Result
	switch topic {
	case TopicFileListDelete:
		c := newCollector("delete")
		runBatches(ctx, p.Resources, p.batchSize(), func(ctx context.Context, r resource.Resource) error {
			return client.DeleteFile(ctx, p.Space, r.Path)
		}, c)
		result = c.Result()
	case TopicTrashBinDelete:
		c := newCollector("clear_trash")
		runBatches(ctx, p.Resources, p.batchSize(), func(ctx context.Context, r resource.Resource) error {
			return client.ClearTrashBin(ctx, p.Space, r.ID)
		}, c)
		result = c.Result()
	case TopicStartProcess:
		result = restore(ctx, client, p)
	}

	logging.WithContext(ctx).Info("bulk operation finished",
		zap.String("topic", topic),
		zap.String("space", p.Space.ID),
		zap.Int("successful", len(result.Successful)),
		zap.Int("failed", len(result.Failed)))
	return result
}

type folderFailure struct {
	path string
	err  error
}

// restore recreates the missing folders in order, then restores the
// resources. A folder that cannot be created fails every resource and
// missing folder below it; everything else is still attempted.
func restore(ctx context.Context, client *webdav.WebDAV, p Payload) Result {
	log := logging.WithContext(ctx)
	var failedFolders []folderFailure

	poisoned := func(path string) error {
		for _, f := range failedFolders {
			if davpath.IsDescendant(path, f.path) {
				return f.err
			}
		}
		return nil
	}

	for _, folder := range p.MissingFolderPaths {
		if err := poisoned(folder); err != nil {
			failedFolders = append(failedFolders, folderFailure{path: folder, err: err})
			continue
		}
		if err := createFolder(ctx, client, p.Space, folder); err != nil {
			log.Warn("failed to create folder for restore",
				zap.String("path", folder), zap.Error(err))
			failedFolders = append(failedFolders, folderFailure{path: folder, err: err})
		}
	}

	c := newCollector("restore")
	pending := make([]resource.Resource, 0, len(p.Resources))
	for _, r := range p.Resources {
		if err := poisoned(r.Path); err != nil {
			c.add(r, err)
			continue
		}
		pending = append(pending, r)
	}

	runBatches(ctx, pending, p.batchSize(), func(ctx context.Context, r resource.Resource) error {
		return client.RestoreFile(ctx, p.Space, r.ID, r.Path, false)
	}, c)
	return c.Result()
}

// createFolder creates path. A folder that already exists is not an error.
func createFolder(ctx context.Context, client *webdav.WebDAV, space resource.Space, path string) error {
	_, err := client.CreateFolder(ctx, space, path, false)
	var he *httperror.HTTPError
	if errors.As(err, &he) && he.StatusCode == http.StatusMethodNotAllowed {
		return nil
	}
	return err
}
