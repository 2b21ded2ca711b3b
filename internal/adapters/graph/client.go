// Package graph talks to a Microsoft Graph style REST API for calendar events,
// to-do items, and drive files on behalf of a user subject.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Defaults applied by NewClient when Config leaves a field zero.
const (
	DefaultBaseURL            = "https://graph.microsoft.com/v1.0"
	DefaultTodoListName       = "Nexus Project Hub"
	DefaultEventSubjectPrefix = "[Nexus]"
	DefaultTimeout            = 15 * time.Second
	DefaultDriveFolder        = "Nexus"
)

// ErrNotFound reports a 404 from the remote API.
var ErrNotFound = errors.New("graph resource not found")

// ErrInvalidSubject reports a call made without a user subject.
var ErrInvalidSubject = errors.New("graph user subject is required")

// StatusError carries an unexpected HTTP status with a trimmed response body.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("graph %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Config holds configuration for the graph client.
type Config struct {
	BaseURL            string
	AccessToken        string
	TodoListName       string
	EventSubjectPrefix string
	DriveFolder        string
	Timeout            time.Duration
	HTTPClient         *http.Client
}

// Client calls the remote API with a bearer token.
type Client struct {
	baseURL      string
	token        string
	todoListName string
	eventPrefix  string
	driveFolder  string
	http         *http.Client
}

// NewClient constructs a client, applying defaults for zero config values.
func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.TodoListName) == "" {
		cfg.TodoListName = DefaultTodoListName
	}
	if strings.TrimSpace(cfg.EventSubjectPrefix) == "" {
		cfg.EventSubjectPrefix = DefaultEventSubjectPrefix
	}
	if strings.TrimSpace(cfg.DriveFolder) == "" {
		cfg.DriveFolder = DefaultDriveFolder
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:        strings.TrimSpace(cfg.AccessToken),
		todoListName: strings.TrimSpace(cfg.TodoListName),
		eventPrefix:  strings.TrimSpace(cfg.EventSubjectPrefix),
		driveFolder:  strings.Trim(strings.TrimSpace(cfg.DriveFolder), "/"),
		http:         httpClient,
	}
}

// userPath returns the escaped "/users/<subject>" prefix.
func userPath(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", ErrInvalidSubject
	}
	return "/users/" + url.PathEscape(subject), nil
}

// doJSON sends in as JSON (when non-nil) and decodes the response into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode graph request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	resp, err := c.send(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

// send issues one request and returns the response for 2xx statuses only.
// Callers own the returned body.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return nil, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

// dateTimeTimeZone is the remote wall-clock representation.
type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

func utcDateTime(t time.Time) dateTimeTimeZone {
	return dateTimeTimeZone{DateTime: t.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"}
}

// itemBody is a rich-text body.
type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// idResponse decodes the id of a created resource.
type idResponse struct {
	ID string `json:"id"`
}

// requireID rejects a created resource that came back without an id.
func requireID(kind string, resp idResponse) (string, error) {
	id := strings.TrimSpace(resp.ID)
	if id == "" {
		return "", fmt.Errorf("graph created %s without an id", kind)
	}
	return id, nil
}
