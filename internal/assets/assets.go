// Package assets turns a source media URL into a publish-ready public URL.
// Videos pass through untouched; images are re-rendered with a text overlay
// and re-hosted on the CDN so the publishing platforms fetch one stable,
// deterministic asset.
package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/renomedia/promopost/internal/logutil"
	"github.com/renomedia/promopost/internal/overlay"
	"github.com/renomedia/promopost/internal/promo"
)

const (
	// overlayFolder is the CDN folder all rendered assets land in.
	overlayFolder = "social_overlayed"

	maxSourceBytes = 20 << 20
	fetchTimeout   = 30 * time.Second
)

// SourceUnavailableError is returned when the source photo cannot be fetched.
type SourceUnavailableError struct {
	URL    string
	Reason string
}

func (e SourceUnavailableError) Error() string {
	return fmt.Sprintf("source image %s unavailable: %s", e.URL, e.Reason)
}

// Uploader hosts rendered bytes and returns their stable public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, publicID string) (string, error)
}

// Preparer implements promo.AssetPreparer.
type Preparer struct {
	http     *http.Client
	uploader Uploader
}

// NewPreparer constructs a Preparer backed by the given uploader.
func NewPreparer(uploader Uploader, httpClient *http.Client) *Preparer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	return &Preparer{http: httpClient, uploader: uploader}
}

// Prepare returns the URL the publisher should reference. Video assets are
// returned unchanged without any network calls.
func (p *Preparer) Prepare(ctx context.Context, asset promo.MediaAsset, canvas promo.Canvas) (string, error) {
	if asset.Kind == promo.MediaVideo {
		return asset.SourceURL, nil
	}

	source, err := p.fetchSource(ctx, asset.SourceURL)
	if err != nil {
		return "", err
	}

	opts := overlay.Options{Width: canvas.Width, Height: canvas.Height}
	if asset.Overlay != nil {
		opts.Title = asset.Overlay.Title
		opts.Subtitle = asset.Overlay.Subtitle
	}
	rendered, err := overlay.Render(source, opts)
	if err != nil {
		return "", err
	}

	publicID := publicIDFor(opts.Title)
	url, err := p.uploader.Upload(ctx, rendered, publicID)
	if err != nil {
		return "", err
	}
	logutil.Debugf("overlay asset hosted: public_id=%s url=%s bytes=%d", publicID, url, len(rendered))
	return url, nil
}

func (p *Preparer) fetchSource(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, SourceUnavailableError{URL: url, Reason: err.Error()}
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, promo.TransientError{Err: fmt.Errorf("fetch source image: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, SourceUnavailableError{URL: url, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, promo.TransientError{Err: fmt.Errorf("read source image: %w", err)}
	}
	return data, nil
}

func publicIDFor(title string) string {
	base := slug.Make(title)
	if base == "" {
		base = "promo"
	}
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%s/%s-%s", overlayFolder, base, suffix)
}
