// Package images fetches remote images and rehosts them in object storage so
// the registry never keeps a reference to a transient external address.
package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const fetchTimeout = 10 * time.Second

var (
	// ErrUpstreamFetch covers network failures and non-success statuses from
	// the remote endpoint.
	ErrUpstreamFetch = errors.New("could not fetch remote image")

	// ErrInvalidContentType is returned when the remote endpoint responds
	// with something that is not an image.
	ErrInvalidContentType = errors.New("url does not point to an image")
)

// Uploader is the object-storage client the ingestor persists images with.
type Uploader interface {
	Upload(ctx context.Context, bucketName, key, contentType string, body io.Reader) error
	PublicURL(bucketName, key string) string
}

type Ingestor struct {
	client   *http.Client
	uploader Uploader
	bucket   string
	logger   *zap.Logger
}

func NewIngestor(uploader Uploader, bucket string, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ingestor{
		client:   &http.Client{Timeout: fetchTimeout},
		uploader: uploader,
		bucket:   bucket,
		logger:   logger,
	}
}

// ValidateURL reports whether rawURL responds with a success status within
// the fetch timeout. Network failures of any kind yield false.
func (ing *Ingestor) ValidateURL(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return false
	}

	resp, err := ing.client.Do(req)
	if err != nil {
		return false
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}

// Ingest fetches rawURL, verifies the response carries an image, uploads the
// bytes under a fresh object key and returns the object's public address.
// There is no cleanup on partial failure: the object is only created after
// the fetch fully succeeded.
func (ing *Ingestor) Ingest(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUpstreamFetch, err)
	}

	resp, err := ing.client.Do(req)
	if err != nil {
		ing.logger.Error("image fetch failed", zap.String("url", rawURL), zap.Error(err))

		return "", fmt.Errorf("%w: %s", ErrUpstreamFetch, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: unexpected status %d", ErrUpstreamFetch, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: got content type %s", ErrInvalidContentType, contentType)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUpstreamFetch, err)
	}

	key := objectKey(rawURL)

	if err := ing.uploader.Upload(ctx, ing.bucket, key, contentType, bytes.NewReader(body)); err != nil {
		ing.logger.Error("image upload failed", zap.String("key", key), zap.Error(err))

		return "", fmt.Errorf("upload image: %w", err)
	}

	return ing.uploader.PublicURL(ing.bucket, key), nil
}

// objectKey builds a globally unique object name from a random token and the
// sanitized last path segment of the source URL.
func objectKey(rawURL string) string {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")

	suffix := ""
	if u, err := url.Parse(rawURL); err == nil {
		suffix = sanitizeSegment(path.Base(u.Path))
	}

	if suffix == "" {
		return "uploads/" + token
	}

	return fmt.Sprintf("uploads/%s_%s", token, suffix)
}

func sanitizeSegment(s string) string {
	if s == "." || s == "/" {
		return ""
	}

	var b strings.Builder

	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}

	const maxSegment = 100

	out := b.String()
	if len(out) > maxSegment {
		out = out[len(out)-maxSegment:]
	}

	return out
}
