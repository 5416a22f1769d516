// Package attach streams attachment downloads to local files under a
// max-size and timeout budget.
package attach

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/karwei/ntfywatch/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const chunkSize = 128 * 1024

var (
	ErrInvalidSource   = errors.New("invalid attachment source")
	ErrMaxSizeExceeded = errors.New("attachment exceeds maximum size")
	ErrBadResponse     = errors.New("bad attachment response")
)

type Fetcher struct {
	log       *zap.Logger
	transport http.RoundTripper
	dir       string
}

func NewFetcher(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, transport http.RoundTripper) *Fetcher {
	return &Fetcher{log: log, transport: transport, dir: cfg.AttachmentDir}
}

// Download streams url to a file keyed by the message id, returning the final
// path. It enforces its own timeout: callers run under a hard wall-clock
// budget and must not be held past it by a stalled transfer. The declared
// Content-Length is checked before any body byte is transferred; the running
// byte count is checked during. Partial files never survive a failure.
func (f *Fetcher) Download(ctx context.Context, url, id string, maxBytes int64, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	client := &http.Client{Transport: f.transport}
	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrBadResponse, res.StatusCode)
	}
	if res.ContentLength > maxBytes {
		return "", fmt.Errorf("%w: declared %d > %d", ErrMaxSizeExceeded, res.ContentLength, maxBytes)
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", err
	}
	tmpPath := filepath.Join(f.dir, id+".part-"+uuid.NewString())

	firstChunk, err := f.streamToFile(res.Body, tmpPath, maxBytes)
	if err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	// The display layer infers renderability from the file extension, so the
	// sniffed type decides the final name.
	finalPath := filepath.Join(f.dir, id+guessExtension(res.Header.Get("Content-Type"), firstChunk))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return finalPath, nil
}

func (f *Fetcher) streamToFile(body io.Reader, path string, maxBytes int64) ([]byte, error) {
	out, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	var written int64
	var firstChunk []byte
	buf := make([]byte, chunkSize)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > maxBytes {
				return nil, fmt.Errorf("%w: stream crossed %d bytes", ErrMaxSizeExceeded, maxBytes)
			}
			if firstChunk == nil {
				firstChunk = append([]byte(nil), buf[:n]...)
			}
			if _, err := out.Write(buf[:n]); err != nil {
				return nil, err
			}
		}
		if readErr == io.EOF {
			return firstChunk, nil
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadResponse, readErr)
		}
	}
}

// guessExtension prefers the declared content type, falling back to sniffing
// magic bytes from the first chunk.
func guessExtension(declared string, firstChunk []byte) string {
	for _, contentType := range []string{declared, http.DetectContentType(firstChunk)} {
		if contentType == "" || contentType == "application/octet-stream" {
			continue
		}
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}
