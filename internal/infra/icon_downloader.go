package infra

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"marketwatch/internal/domain"

	"github.com/disintegration/imaging"
)

// IconDownloader handles downloading and caching item icons
type IconDownloader struct {
	basePath  string
	renderURL string
	size      int
	client    *http.Client
}

// NewIconDownloader creates a new IconDownloader from the icons config section
func NewIconDownloader(cfg *Config) (*IconDownloader, error) {
	// Optimize HTTP Transport to prevent connection leaks
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: transport,
	}
	return NewIconDownloaderWithOptions(cfg.Icons.Dir, cfg.Icons.RenderURL, cfg.Icons.Size, client)
}

// NewIconDownloaderWithOptions creates a downloader with explicit settings.
func NewIconDownloaderWithOptions(dir, renderURL string, size int, client *http.Client) (*IconDownloader, error) {
	if dir == "" {
		return nil, fmt.Errorf("icon directory is required")
	}
	if renderURL == "" {
		renderURL = DefaultRenderURL
	}
	if size <= 0 {
		size = 64
	}
	if client == nil {
		client = http.DefaultClient
	}

	// Ensure directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create icon directory: %w", err)
	}

	return &IconDownloader{
		basePath:  dir,
		renderURL: strings.TrimRight(renderURL, "/"),
		size:      size,
		client:    client,
	}, nil
}

// DownloadIcon downloads the icon of an item if it doesn't exist yet.
// Returns the local file path on success.
// Images are resized to size x size pixels.
func (d *IconDownloader) DownloadIcon(ctx context.Context, itemID string, quality domain.Quality) (string, error) {
	// Security: Sanitize identifier to prevent path traversal
	safeID := sanitizeItemID(itemID)
	if safeID == "" || safeID != itemID {
		return "", fmt.Errorf("invalid item identifier: %q", itemID)
	}
	if !quality.Valid() {
		quality = domain.QualityNormal
	}

	filePath := d.IconPath(itemID, quality)

	// Check if exists
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Already exists (Cache Hit)
	}

	url := fmt.Sprintf("%s/%s.png?quality=%d", d.renderURL, itemID, int(quality))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	// Decode the image
	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// High-quality Lanczos filter
	resizedImg := imaging.Resize(srcImg, d.size, d.size, imaging.Lanczos)

	if err := imaging.Save(resizedImg, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// IconPath returns the local path of an item's icon
func (d *IconDownloader) IconPath(itemID string, quality domain.Quality) string {
	name := strings.ReplaceAll(itemID, "@", "-")
	return filepath.Join(d.basePath, fmt.Sprintf("%s_q%d.png", name, int(quality)))
}

func sanitizeItemID(id string) string {
	res := make([]rune, 0, len(id))
	for _, r := range id {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '@' {
			res = append(res, r)
		}
	}
	return string(res)
}
