// Package onedrive stores attachment bytes in the uploader's cloud drive.
package onedrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hylla/nexus/internal/adapters/graph"
	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
)

// LocatorScheme prefixes every locator this storage issues.
const LocatorScheme = "onedrive:"

// ErrOwnerRequired reports a drive call without an owner subject.
var ErrOwnerRequired = fmt.Errorf("%w: drive storage needs an owner", domain.ErrValidation)

// Drive is the subset of the graph client this storage uses.
type Drive interface {
	UploadFile(ctx context.Context, owner, scope, name string, body io.Reader) (string, error)
	DownloadFile(ctx context.Context, owner, itemID string) ([]byte, error)
	DeleteFile(ctx context.Context, owner, itemID string) error
}

// Storage implements app.FileStorage over a Drive.
type Storage struct {
	drive Drive
}

// New constructs a Storage.
func New(drive Drive) *Storage {
	return &Storage{drive: drive}
}

// Store uploads body into the owner's drive and returns "onedrive:<item id>".
func (s *Storage) Store(ctx context.Context, body io.Reader, name, scopeID, ownerID string) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", ErrOwnerRequired
	}
	id, err := s.drive.UploadFile(ctx, ownerID, scopeID, name, body)
	if err != nil {
		return "", translate(err)
	}
	return LocatorScheme + id, nil
}

// Delete removes a drive item. Without an owner there is nothing to address, so it is a no-op.
func (s *Storage) Delete(ctx context.Context, locator, ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return nil
	}
	id, err := itemID(locator)
	if err != nil {
		return err
	}
	err = s.drive.DeleteFile(ctx, ownerID, id)
	if errors.Is(err, graph.ErrNotFound) {
		return nil
	}
	return translate(err)
}

// Fetch downloads a drive item.
func (s *Storage) Fetch(ctx context.Context, locator, ownerID string) ([]byte, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOwnerRequired
	}
	id, err := itemID(locator)
	if err != nil {
		return nil, err
	}
	data, err := s.drive.DownloadFile(ctx, ownerID, id)
	if err != nil {
		return nil, translate(err)
	}
	return data, nil
}

func itemID(locator string) (string, error) {
	id, ok := strings.CutPrefix(strings.TrimSpace(locator), LocatorScheme)
	if !ok || strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidLocator, locator)
	}
	return id, nil
}

// translate maps graph errors onto app error kinds.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, graph.ErrNotFound):
		return fmt.Errorf("%w: %w", app.ErrNotFound, err)
	case errors.Is(err, graph.ErrInvalidSubject):
		return ErrOwnerRequired
	default:
		return err
	}
}

var _ app.FileStorage = (*Storage)(nil)
