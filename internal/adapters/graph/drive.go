package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// UploadFile writes body to "<drive folder>/<scope>/<name>" in the owner's drive and returns the item id.
func (c *Client) UploadFile(ctx context.Context, owner, scope, name string, body io.Reader) (string, error) {
	base, err := userPath(owner)
	if err != nil {
		return "", err
	}
	segments := []string{c.driveFolder, scope, name}
	escaped := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.Trim(strings.TrimSpace(segment), "/")
		if segment == "" {
			continue
		}
		escaped = append(escaped, url.PathEscape(segment))
	}
	path := fmt.Sprintf("%s/drive/root:/%s:/content", base, strings.Join(escaped, "/"))
	resp, err := c.send(ctx, http.MethodPut, path, body, "application/octet-stream")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var created idResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode graph response: %w", err)
	}
	return requireID("drive item", created)
}

// DownloadFile returns the bytes of one drive item.
func (c *Client) DownloadFile(ctx context.Context, owner, itemID string) ([]byte, error) {
	base, err := userPath(owner)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, http.MethodGet, base+"/drive/items/"+url.PathEscape(itemID)+"/content", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read drive item: %w", err)
	}
	return data, nil
}

// DeleteFile removes one drive item.
func (c *Client) DeleteFile(ctx context.Context, owner, itemID string) error {
	base, err := userPath(owner)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, base+"/drive/items/"+url.PathEscape(itemID), nil, nil)
}
