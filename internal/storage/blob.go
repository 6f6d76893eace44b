// Package storage holds uploaded question images.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
)

var (
	ErrInvalidKey = apierr.New(apierr.Invalid, "invalid blob key")
	ErrNotFound   = apierr.New(apierr.NotFound, "blob not found")
)

type BlobStore interface {
	// Put writes r under key and returns the canonical key.
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// URL is the address clients use to fetch key.
	URL(key string) string
}

// CleanKey normalizes key to a slash-separated relative path and rejects
// anything that would escape the store's root.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", ErrInvalidKey
		}
	}
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "" || clean == "." {
		return "", ErrInvalidKey
	}
	return clean, nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// QuestionImageKey names an uploaded image: gee-questions/<unix ms>-<name>
// with every character outside [a-zA-Z0-9._-] replaced by '-'.
func QuestionImageKey(now time.Time, filename string) string {
	name := unsafeName.ReplaceAllString(path.Base(strings.ReplaceAll(filename, "\\", "/")), "-")
	if name == "" || name == "." || name == "/" {
		name = "image"
	}
	return fmt.Sprintf("gee-questions/%d-%s", now.UnixMilli(), name)
}
