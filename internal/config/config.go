package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type AuthMode string

const (
	AuthModeJWT    AuthMode = "jwt"
	AuthModeHeader AuthMode = "header"
)

type StorageProvider string

const (
	StorageLocal    StorageProvider = "local"
	StorageOneDrive StorageProvider = "onedrive"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Storage  StorageConfig  `toml:"storage"`
	Graph    GraphConfig    `toml:"graph"`
	Sync     SyncConfig     `toml:"sync"`
	Tasks    TasksConfig    `toml:"tasks"`
	Identity IdentityConfig `toml:"identity"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	HTTPBind        string   `toml:"http_bind"`
	APIEndpoint     string   `toml:"api_endpoint"`
	MCPEndpoint     string   `toml:"mcp_endpoint"`
	MaxBodyBytes    int64    `toml:"max_body_bytes"`
	UploadMaxBytes  int64    `toml:"upload_max_bytes"`
	RateLimitRPS    float64  `toml:"rate_limit_rps"`
	RateLimitBurst  int      `toml:"rate_limit_burst"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type AuthConfig struct {
	Mode      AuthMode `toml:"mode"`
	JWTSecret string   `toml:"jwt_secret"`
	JWTIssuer string   `toml:"jwt_issuer"`
}

type StorageConfig struct {
	Provider     StorageProvider `toml:"provider"`
	UploadDir    string          `toml:"upload_dir"`
	PublicPrefix string          `toml:"public_prefix"`
}

type GraphConfig struct {
	BaseURL            string   `toml:"base_url"`
	AccessToken        string   `toml:"access_token"`
	TodoListName       string   `toml:"todo_list_name"`
	EventSubjectPrefix string   `toml:"event_subject_prefix"`
	Timeout            Duration `toml:"timeout"`
}

type SyncConfig struct {
	Enabled          bool     `toml:"enabled"`
	Workers          int      `toml:"workers"`
	QueueSize        int      `toml:"queue_size"`
	JobTimeout       Duration `toml:"job_timeout"`
	AutoTodoOnAssign bool     `toml:"auto_todo_on_assign"`
}

type TasksConfig struct {
	DeleteMode string `toml:"delete_mode"` // cascade | reject
}

// IdentityConfig is the local identity CLI commands run as.
type IdentityConfig struct {
	Subject     string `toml:"subject"`
	Email       string `toml:"email"`
	DisplayName string `toml:"display_name"`
}

type LoggingConfig struct {
	Level   string `toml:"level"`
	DevFile bool   `toml:"dev_file"`
}

// Duration decodes TOML strings such as "15s" or "2m".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func Default(dbPath string) Config {
	dataDir := filepath.Dir(dbPath)
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Server: ServerConfig{
			HTTPBind:        "127.0.0.1:8080",
			APIEndpoint:     "/api/v1",
			MCPEndpoint:     "/mcp",
			MaxBodyBytes:    1 << 20,
			UploadMaxBytes:  50 << 20,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
			ShutdownTimeout: Duration{5 * time.Second},
		},
		Auth: AuthConfig{
			Mode: AuthModeJWT,
		},
		Storage: StorageConfig{
			Provider:     StorageLocal,
			UploadDir:    filepath.Join(dataDir, "uploads"),
			PublicPrefix: "/uploads",
		},
		Graph: GraphConfig{
			BaseURL:            "https://graph.microsoft.com/v1.0",
			TodoListName:       "Nexus Project Hub",
			EventSubjectPrefix: "[Nexus]",
			Timeout:            Duration{15 * time.Second},
		},
		Sync: SyncConfig{
			Enabled:    false,
			Workers:    2,
			QueueSize:  64,
			JobTimeout: Duration{30 * time.Second},
		},
		Tasks: TasksConfig{
			DeleteMode: "cascade",
		},
		Identity: IdentityConfig{
			Subject:     "local",
			Email:       "local@localhost",
			DisplayName: "Local User",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return cfg, nil
	}

	decoder := toml.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}
	api := "/" + strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/")
	mcp := "/" + strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/")
	if api == mcp {
		return fmt.Errorf("server.api_endpoint and server.mcp_endpoint must differ: %q", api)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be > 0")
	}
	if c.Server.UploadMaxBytes <= 0 {
		return errors.New("server.upload_max_bytes must be > 0")
	}
	if c.Server.RateLimitRPS < 0 {
		return errors.New("server.rate_limit_rps must be >= 0")
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		return errors.New("server.rate_limit_burst must be > 0 when rate limiting is enabled")
	}
	if c.Server.ShutdownTimeout.Duration < 0 {
		return errors.New("server.shutdown_timeout must be >= 0")
	}

	switch c.Auth.Mode {
	case AuthModeJWT, AuthModeHeader:
	default:
		return fmt.Errorf("invalid auth.mode: %q", c.Auth.Mode)
	}

	switch c.Storage.Provider {
	case StorageLocal:
		if strings.TrimSpace(c.Storage.UploadDir) == "" {
			return errors.New("storage.upload_dir is required for the local provider")
		}
	case StorageOneDrive:
	default:
		return fmt.Errorf("invalid storage.provider: %q", c.Storage.Provider)
	}

	if strings.TrimSpace(c.Graph.BaseURL) == "" {
		return errors.New("graph.base_url is required")
	}
	if c.Graph.Timeout.Duration < 0 {
		return errors.New("graph.timeout must be >= 0")
	}

	if c.Sync.Workers < 0 || c.Sync.QueueSize < 0 {
		return errors.New("sync.workers and sync.queue_size must be >= 0")
	}
	if c.Sync.JobTimeout.Duration < 0 {
		return errors.New("sync.job_timeout must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Tasks.DeleteMode)) {
	case "", "cascade", "reject":
	default:
		return fmt.Errorf("invalid tasks.delete_mode: %q", c.Tasks.DeleteMode)
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
