// Package vision loads images from local paths and URLs and converts
// them to model content blocks. Local reads are restricted to an
// operator-approved allow list.
package vision

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog/log"

	"github.com/hearthd/hearth/pkg/backend"
)

// maxImageBytes caps a single image payload.
const maxImageBytes = 20 * 1024 * 1024

// Loader loads and validates images.
type Loader struct {
	allowedDirs []string
	httpClient  *http.Client
}

// NewLoader creates a loader that may read files only under the given
// directories.
func NewLoader(allowedDirs []string) *Loader {
	cleaned := make([]string, 0, len(allowedDirs))
	for _, dir := range allowedDirs {
		if abs, err := filepath.Abs(dir); err == nil {
			cleaned = append(cleaned, abs)
		}
	}
	return &Loader{
		allowedDirs: cleaned,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (l *Loader) isAllowedPath(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range l.allowedDirs {
		rel, err := filepath.Rel(dir, abs)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// imageFormat maps a file name to the short model format name, or ""
// when the name does not look like a supported image.
func imageFormat(name string) string {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if !strings.HasPrefix(mimeType, "image/") {
		return ""
	}
	switch strings.TrimPrefix(mimeType, "image/") {
	case "jpeg", "jpg":
		return "jpeg"
	case "png":
		return "png"
	case "gif":
		return "gif"
	case "webp":
		return "webp"
	default:
		// Model formats are fixed; anything else goes up as jpeg.
		return "jpeg"
	}
}

// LoadFile reads an image from an allow-listed path.
func (l *Loader) LoadFile(path string) (bedrocktypes.ContentBlock, error) {
	if !l.isAllowedPath(path) {
		return nil, fmt.Errorf("cannot read `%s`, no access to path; the image allow list may need to be adjusted", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("`%s` does not exist", path)
		}
		return nil, fmt.Errorf("cannot read `%s`: %w", path, err)
	}
	if info.Size() > maxImageBytes {
		return nil, fmt.Errorf("`%s` exceeds the %d byte image limit", path, maxImageBytes)
	}

	format := imageFormat(path)
	if format == "" {
		return nil, fmt.Errorf("`%s` is not an image", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read `%s`: %w", path, err)
	}
	return backend.ImageBlock(format, data), nil
}

// LoadURL fetches an image over HTTP.
func (l *Loader) LoadURL(ctx context.Context, url string) (bedrocktypes.ContentBlock, error) {
	format := imageFormat(url)
	if format == "" {
		return nil, fmt.Errorf("`%s` is not an image", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot access file from `%s`: %w", url, err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot access file from `%s`: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot access file from `%s`. Status: `%d`, Reason: `%s`",
			url, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read image from `%s`: %w", url, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("`%s` exceeds the %d byte image limit", url, maxImageBytes)
	}
	return backend.ImageBlock(format, data), nil
}

// LoadAll resolves a mixed set of local paths and URLs. Any single
// failure aborts the whole load so a prompt never silently drops an
// image the user asked about.
func (l *Loader) LoadAll(ctx context.Context, paths, urls []string) ([]bedrocktypes.ContentBlock, error) {
	blocks := make([]bedrocktypes.ContentBlock, 0, len(paths)+len(urls))
	for _, path := range paths {
		block, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	for _, url := range urls {
		block, err := l.LoadURL(ctx, url)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	if len(blocks) > 0 {
		log.Debug().Int("images", len(blocks)).Msg("Images loaded")
	}
	return blocks, nil
}
