// Package main provides a command line client for WebDAV file storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fruitsalade/webclient/internal/ability"
	"github.com/fruitsalade/webclient/internal/auth"
	"github.com/fruitsalade/webclient/internal/bulk"
	"github.com/fruitsalade/webclient/internal/config"
	"github.com/fruitsalade/webclient/internal/jobs"
	"github.com/fruitsalade/webclient/internal/loading"
	"github.com/fruitsalade/webclient/internal/logging"
	"github.com/fruitsalade/webclient/internal/metrics"
	"github.com/fruitsalade/webclient/internal/webworker"
	"github.com/fruitsalade/webclient/pkg/resource"
	"github.com/fruitsalade/webclient/pkg/retry"
	"github.com/fruitsalade/webclient/pkg/webdav"
)

// app holds everything a command needs.
type app struct {
	cfg     *config.Config
	tokens  *auth.Manager
	dav     *webdav.WebDAV
	workers *webworker.Store
	loading *loading.Service
	deletes *jobs.DeleteJobs
	restore *jobs.RestoreJobs
	ability *ability.Ability
	space   resource.Space
}

func main() {
	configPath := flag.String("config", "", "Config file (yaml, json or toml)")
	spaceID := flag.String("space", "", "Space id (storageId$spaceId)")
	publicToken := flag.String("public", "", "Public link token (instead of -space)")
	publicPassword := flag.String("password", "", "Public link password")
	role := flag.String("role", "user", "Role used for capability checks: admin, user, guest")
	verbose := flag.Bool("v", false, "Debug logging (overrides log_level)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	if args[0] == "help" {
		printUsage()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()
	if *verbose {
		logging.SetLevel("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	var space resource.Space
	switch {
	case *publicToken != "":
		space = resource.NewPublicSpace(*publicToken, *publicPassword)
	case *spaceID != "":
		space = resource.NewSpace(*spaceID, "", resource.DriveTypePersonal)
	case needsSpace(args[0]):
		fmt.Fprintln(os.Stderr, "Error: -space or -public is required")
		os.Exit(1)
	}

	a, err := newApp(ctx, cfg, space, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.workers.TerminateAll()

	if err := a.run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func needsSpace(cmd string) bool {
	switch cmd {
	case "search", "favorites":
		return false
	}
	return true
}

func newApp(ctx context.Context, cfg *config.Config, space resource.Space, role string) (*app, error) {
	token := cfg.AccessToken
	if token == "" && !space.IsPublic() {
		t, err := promptToken()
		if err != nil {
			return nil, err
		}
		token = t
	}

	var refresher auth.Refresher
	if cfg.RefreshToken != "" {
		r, err := auth.NewOIDCRefresher(ctx, auth.OIDCConfig{
			IssuerURL:    cfg.OIDCIssuer,
			ClientID:     cfg.OIDCClientID,
			RefreshToken: cfg.RefreshToken,
		})
		if err != nil {
			return nil, err
		}
		refresher = r
	}
	tokens := auth.NewManager(token, auth.ManagerConfig{Refresher: refresher})
	if tokens.NeedsRefresh() {
		if err := tokens.Refresh(ctx); err != nil && !errors.Is(err, auth.ErrNoRefresher) {
			logging.Warn("initial token refresh failed", zap.Error(err))
		}
	}

	retryCfg := retry.Disabled()
	if cfg.RetryAttempts > 0 {
		retryCfg = retry.DefaultConfig()
		retryCfg.MaxAttempts = cfg.RetryAttempts + 1
	}
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	var currentUser func() *webdav.User
	if cfg.Username != "" {
		user := &webdav.User{ID: cfg.Username, Username: cfg.Username}
		currentUser = func() *webdav.User { return user }
	}

	dav := webdav.New(webdav.Options{
		BaseURL:           cfg.BaseURL(),
		AccessToken:       tokens,
		Language:          cfg.Language,
		ClientInitiatorID: cfg.ClientInitiatorID,
		CurrentUser:       currentUser,
		HTTPClient:        httpClient,
		Retry:             retryCfg,
	})

	workers := webworker.NewStore()
	tokens.OnRefresh(workers.UpdateAccessToken)
	tokens.Start(ctx)

	tracker := loading.New()
	jobOpts := jobs.Options{
		ServerURL: cfg.BaseURL(),
		Headers: func() map[string]string {
			h := map[string]string{
				"Accept-Language": cfg.Language,
				"Initiator-ID":    cfg.ClientInitiatorID,
				"X-Request-ID":    uuid.NewString(),
			}
			if t := tokens.Token(); t != "" {
				h["Authorization"] = "Bearer " + t
			}
			return h
		},
		ConcurrentRequests: cfg.ConcurrentRequests,
		Workers:            workers,
		Loading:            tracker,
		Handler:            bulk.NewHandler(bulk.Config{HTTPClient: httpClient, Retry: retryCfg}),
	}

	return &app{
		cfg:     cfg,
		tokens:  tokens,
		dav:     dav,
		workers: workers,
		loading: tracker,
		deletes: jobs.NewDeleteJobs(jobOpts),
		restore: jobs.NewRestoreJobs(jobOpts),
		ability: ability.New(ability.RulesForRole(role)...),
		space:   space,
	}, nil
}

// promptToken reads the access token from the terminal without echo.
func promptToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no access token configured (set WEBCLIENT_ACCESS_TOKEN)")
	}
	fmt.Fprint(os.Stderr, "Access token: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logging.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error("metrics server failed", zap.Error(err))
	}
}

func printUsage() {
	fmt.Println(`WebDAV storage client

Usage: webclient [flags] <command> [args]

Flags:
  -config <file>       Config file (default: environment only)
  -space <id>          Space to operate on
  -public <token>      Public link token (instead of -space)
  -password <pw>       Public link password
  -role <role>         Role for capability checks (default: user)
  -v                   Debug logging

Commands:
  ls [-trash] <path>               List a folder or the trash bin
  info <path>                      Show a resource and its capabilities
  mkdir <path>                     Create a folder
  get <path> <local>               Download a file
  put [-etag e] <local> <path>     Upload a file
  cp <from> <to>                   Copy within the space
  mv <from> <to>                   Move within the space
  rm [-n k] <path>...              Delete resources in parallel batches
  trash                            List the trash bin
  restore <id>...                  Restore trash items, recreating folders
  empty-trash [id]...              Purge trash items, or the whole trash bin
  url [-inline] [-version v] [-o file] <path>
                                   Print a download URL
  versions [-restore v] <path>     List or restore file versions
  search [-limit n] <term>         Search all spaces
  favorites                        List favorite files
  fav [-off] <path>                Mark or unmark a favorite
  help                             Show this help message

Environment:
  WEBCLIENT_SERVER_URL, WEBCLIENT_ACCESS_TOKEN, WEBCLIENT_USERNAME,
  WEBCLIENT_CONCURRENT_REQUESTS, WEBCLIENT_URL_SIGNING_ENABLED, ...

Examples:
  webclient -space 'abc$def' ls /Documents
  webclient -space 'abc$def' rm /old.txt /tmp
  webclient -space 'abc$def' restore 'abc$def!123'
  webclient search report`)
}
