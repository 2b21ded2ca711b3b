// Package localfs stores attachment bytes on the local disk.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
)

// DefaultPublicPrefix is the locator prefix used when none is configured.
const DefaultPublicPrefix = "/uploads"

// Storage writes blobs under <root>/<scope>/<uuid><ext>. Locators take the form
// <prefix>/<scope>/<uuid><ext> and never reveal the root directory.
type Storage struct {
	root   string
	prefix string
}

// New constructs a Storage rooted at dir.
func New(dir, publicPrefix string) (*Storage, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	publicPrefix = "/" + strings.Trim(strings.TrimSpace(publicPrefix), "/")
	if publicPrefix == "/" {
		publicPrefix = DefaultPublicPrefix
	}
	return &Storage{root: dir, prefix: publicPrefix}, nil
}

// Store copies body to a fresh file in the scope directory. ownerID is ignored.
func (s *Storage) Store(ctx context.Context, body io.Reader, name, scopeID, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	scope, err := cleanSegment(scopeID)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, scope)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create scope dir: %w", err)
	}
	fileName := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	dst, err := os.OpenFile(filepath.Join(dir, fileName), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(dst, body); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("close blob: %w", err)
	}
	return path.Join(s.prefix, scope, fileName), nil
}

// Delete removes the file a locator points at. Missing files are not an error.
func (s *Storage) Delete(_ context.Context, locator, _ string) error {
	full, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// Fetch reads the file a locator points at.
func (s *Storage) Fetch(_ context.Context, locator, _ string) ([]byte, error) {
	full, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: blob %s", app.ErrNotFound, locator)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// resolve maps a locator back to a path inside root, rejecting anything that escapes it.
func (s *Storage) resolve(locator string) (string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(locator), s.prefix+"/")
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidLocator, locator)
	}
	scope, name, ok := strings.Cut(rest, "/")
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidLocator, locator)
	}
	scope, err := cleanSegment(scope)
	if err != nil {
		return "", err
	}
	name, err = cleanSegment(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, scope, name), nil
}

// cleanSegment accepts one plain path element.
func cleanSegment(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "." || v == ".." || strings.ContainsAny(v, `/\`) {
		return "", fmt.Errorf("%w: bad path element %q", domain.ErrInvalidLocator, v)
	}
	return v, nil
}

var _ app.FileStorage = (*Storage)(nil)
