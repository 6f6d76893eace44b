package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/storage"
)

const DefaultUploadMaxBytes = 5 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

type uploadResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

// UploadHandler stores one question image from the multipart field "file".
func UploadHandler(bs storage.BlobStore, maxBytes int64) http.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	tooLarge := fmt.Sprintf("file too large (max %dMB)", maxBytes>>20)

	return func(w http.ResponseWriter, r *http.Request) {
		// room for the multipart envelope around the file itself
		limit := maxBytes + 64<<10
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) || r.ContentLength > limit {
				apierr.WriteStatus(w, http.StatusBadRequest, tooLarge)
				return
			}
			apierr.WriteStatus(w, http.StatusBadRequest, "no file provided")
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		f, hdr, err := r.FormFile("file")
		if err != nil {
			apierr.WriteStatus(w, http.StatusBadRequest, "no file provided")
			return
		}
		defer f.Close()

		ct, _, _ := mime.ParseMediaType(hdr.Header.Get("Content-Type"))
		if !allowedImageTypes[ct] {
			apierr.WriteStatus(w, http.StatusBadRequest, "invalid file type")
			return
		}
		if hdr.Size > maxBytes {
			apierr.WriteStatus(w, http.StatusBadRequest, tooLarge)
			return
		}

		key, err := bs.Put(r.Context(), storage.QuestionImageKey(time.Now(), hdr.Filename), ct, f)
		if err != nil {
			writeError(w, r, fmt.Errorf("upload: %w", err))
			return
		}
		apierr.JSON(w, http.StatusOK, uploadResponse{
			URL:      bs.URL(key),
			Filename: hdr.Filename,
			Size:     hdr.Size,
			Type:     ct,
		})
	}
}

// MountAssets serves GET /* from the blob store.
func MountAssets(r chi.Router, bs storage.BlobStore) {
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(r.Context(), key)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer rc.Close()

		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		// svg uploads must not run script on this origin
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		_, _ = io.Copy(w, rc)
	})
}
