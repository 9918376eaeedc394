// Package storage persists generated portrait assets and derives fetchable
// URLs for them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore keeps assets on the local filesystem and serves them through the
// configured public base URL. Intended for development and single-node
// deployments; the CDN-backed store implements the same surface.
type FileStore struct {
	basePath string
	baseURL  string
}

// NewFileStore initializes a FileStore rooted at basePath. baseURL is the
// public prefix URLs are derived from.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}, nil
}

// Store persists the bytes under a fresh asset identifier and returns it.
// The identifier is stable and doubles as the storage key.
func (s *FileStore) Store(ctx context.Context, data []byte, mime, jobID string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("storage: empty asset")
	}

	assetID := fmt.Sprintf("portraits/%s/%s%s", jobID, uuid.NewString(), extensionForMIME(mime))
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(assetID))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write asset: %w", err)
	}
	return assetID, nil
}

// Read returns the bytes and best-effort MIME type for a stored asset.
func (s *FileStore) Read(ctx context.Context, assetID string) ([]byte, string, error) {
	if s == nil {
		return nil, "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	clean, err := sanitizeKey(assetID)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, filepath.FromSlash(clean)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("storage: asset %q: %w", assetID, err)
		}
		return nil, "", fmt.Errorf("storage: read asset: %w", err)
	}
	return data, mimeForExtension(filepath.Ext(clean)), nil
}

// URL derives the public URL for a stored asset.
func (s *FileStore) URL(assetID string) string {
	if s == nil || assetID == "" {
		return ""
	}
	return s.baseURL + "/" + strings.TrimLeft(assetID, "/")
}

// PreviewURL derives the URL of a rendered variant (for example the
// watermarked preview shown before purchase). Variant rendering happens at
// the serving layer; this only shapes the address.
func (s *FileStore) PreviewURL(assetID, variant string) string {
	base := s.URL(assetID)
	if base == "" {
		return ""
	}
	if variant == "" {
		return base
	}
	return base + "?variant=" + variant
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

func mimeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
