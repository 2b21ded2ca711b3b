package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hylla/nexus/internal/adapters/graph"
	"github.com/hylla/nexus/internal/adapters/server/httpapi"
	"github.com/hylla/nexus/internal/adapters/storage/localfs"
	"github.com/hylla/nexus/internal/adapters/storage/onedrive"
	"github.com/hylla/nexus/internal/adapters/storage/sqlite"
	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/config"
	"github.com/hylla/nexus/internal/domain"
	"github.com/hylla/nexus/internal/platform"
	"github.com/joho/godotenv"
)

// Environment variables read by the CLI.
const (
	envConfig     = "NEXUS_CONFIG"
	envDBPath     = "NEXUS_DB_PATH"
	envGraphToken = "NEXUS_GRAPH_TOKEN"
	envJWTSecret  = "NEXUS_JWT_SECRET"
	envDevMode    = "NEXUS_DEV_MODE"
	envAppName    = "NEXUS_APP_NAME"
)

// globalOptions carries the persistent root flags.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// resolvedConfig is the outcome of path resolution, config loading, and env overrides.
type resolvedConfig struct {
	opts       globalOptions
	paths      platform.Paths
	configPath string
	cfg        config.Config
}

// runtimeEnv owns the collaborators one command needs.
type runtimeEnv struct {
	resolvedConfig
	logger     *runtimeLogger
	repo       *sqlite.Repository
	graph      *graph.Client
	dispatcher *app.SyncDispatcher
	svc        *app.Service
}

// loadDotEnv reads KEY=VALUE pairs from path without overriding variables already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// resolveConfig resolves paths and loads config. Flags beat env, env beats the file.
func resolveConfig(opts globalOptions) (resolvedConfig, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
	if err != nil {
		return resolvedConfig{}, err
	}

	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		configPath = envOr(envConfig, paths.ConfigPath)
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if v := strings.TrimSpace(os.Getenv(envDBPath)); v != "" {
			dbPath = v
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return resolvedConfig{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	if v := strings.TrimSpace(os.Getenv(envGraphToken)); v != "" {
		cfg.Graph.AccessToken = v
	}
	if v := strings.TrimSpace(os.Getenv(envJWTSecret)); v != "" {
		cfg.Auth.JWTSecret = v
	}
	return resolvedConfig{opts: opts, paths: paths, configPath: configPath, cfg: cfg}, nil
}

// envOptions controls which optional collaborators openRuntime wires.
type envOptions struct {
	consoleLogs bool
	withSync    bool
}

// openRuntime opens storage and builds the service. Callers must Close the result.
func openRuntime(rc resolvedConfig, stderr io.Writer, eo envOptions) (*runtimeEnv, error) {
	cfg := rc.cfg
	logger, err := newRuntimeLogger(stderr, rc.opts.appName, rc.paths.LogDir, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.SetConsoleEnabled(eo.consoleLogs)
	env := &runtimeEnv{resolvedConfig: rc, logger: logger}

	logger.Debug("runtime paths resolved", "config_path", rc.configPath, "data_dir", rc.paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	deleteMode, err := app.ParseDeleteMode(cfg.Tasks.DeleteMode)
	if err != nil {
		env.Close()
		return nil, err
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		env.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	env.repo = repo

	if strings.TrimSpace(cfg.Graph.AccessToken) != "" {
		env.graph = graph.NewClient(graph.Config{
			BaseURL:            cfg.Graph.BaseURL,
			AccessToken:        cfg.Graph.AccessToken,
			TodoListName:       cfg.Graph.TodoListName,
			EventSubjectPrefix: cfg.Graph.EventSubjectPrefix,
			Timeout:            cfg.Graph.Timeout.Duration,
		})
	}

	storage, err := buildFileStorage(cfg.Storage, env.graph)
	if err != nil {
		env.Close()
		return nil, err
	}

	opts := []app.Option{app.WithLogger(logger), app.WithFileStorage(storage)}
	if eo.withSync && cfg.Sync.Enabled {
		if env.graph == nil {
			env.Close()
			return nil, fmt.Errorf("sync is enabled but no graph access token is configured (set graph.access_token or %s)", envGraphToken)
		}
		env.dispatcher = app.NewSyncDispatcher(repo, env.graph, time.Now, logger, app.SyncDispatcherConfig{
			Workers:    cfg.Sync.Workers,
			QueueSize:  cfg.Sync.QueueSize,
			JobTimeout: cfg.Sync.JobTimeout.Duration,
		})
		env.dispatcher.Start()
		opts = append(opts, app.WithSyncQueue(env.dispatcher))
	}

	env.svc = app.NewService(repo, uuid.NewString, time.Now, app.ServiceConfig{
		TaskDeleteMode:   deleteMode,
		AutoTodoOnAssign: cfg.Sync.AutoTodoOnAssign,
		UploadMaxBytes:   cfg.Server.UploadMaxBytes,
	}, opts...)
	logger.Debug("application service initialized", "delete_mode", deleteMode, "storage", cfg.Storage.Provider, "sync", env.dispatcher != nil)
	return env, nil
}

// buildFileStorage picks the attachment backend for the configured provider.
func buildFileStorage(cfg config.StorageConfig, client *graph.Client) (app.FileStorage, error) {
	switch cfg.Provider {
	case config.StorageOneDrive:
		if client == nil {
			return nil, fmt.Errorf("storage.provider %q needs a graph access token (set graph.access_token or %s)", cfg.Provider, envGraphToken)
		}
		return onedrive.New(client), nil
	default:
		storage, err := localfs.New(cfg.UploadDir, cfg.PublicPrefix)
		if err != nil {
			return nil, fmt.Errorf("open upload dir: %w", err)
		}
		return storage, nil
	}
}

// buildAuthenticator picks the request authenticator for serve mode.
func buildAuthenticator(cfg config.AuthConfig) (httpapi.Authenticator, error) {
	switch cfg.Mode {
	case config.AuthModeHeader:
		return httpapi.HeaderAuthenticator{}, nil
	default:
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return nil, fmt.Errorf("auth.mode %q needs auth.jwt_secret or %s", config.AuthModeJWT, envJWTSecret)
		}
		auth, err := httpapi.NewJWTAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return nil, err
		}
		return auth, nil
	}
}

// signIn resolves the configured local identity and attaches it to ctx.
func (e *runtimeEnv) signIn(ctx context.Context) (context.Context, domain.User, error) {
	id := e.cfg.Identity
	user, err := e.svc.ResolveIdentity(ctx, domain.Identity{
		Subject:     id.Subject,
		Email:       id.Email,
		DisplayName: id.DisplayName,
	})
	if err != nil {
		return ctx, domain.User{}, fmt.Errorf("resolve local identity: %w", err)
	}
	return app.WithCaller(ctx, app.Caller{
		UserID:      user.ID,
		Subject:     user.Subject,
		DisplayName: user.DisplayName,
	}), user, nil
}

// Close stops the dispatcher, then closes the store and log file.
func (e *runtimeEnv) Close() {
	if e == nil {
		return
	}
	if e.dispatcher != nil {
		e.dispatcher.Stop()
	}
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Warn("sqlite close failed", "db_path", e.cfg.Database.Path, "err", err)
		}
	}
	if err := e.logger.Close(); err != nil && e.logger.consoleEnabled {
		e.logger.consoleSink.Warn("close runtime log sink", "err", err)
	}
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}
