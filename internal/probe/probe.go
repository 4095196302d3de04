// Package probe verifies that a candidate media URL is publicly fetchable
// before it is handed to a publishing platform.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/renomedia/promopost/internal/logutil"
	"github.com/renomedia/promopost/internal/retry"
)

const (
	defaultMinBytes    = 1024
	defaultMaxAttempts = 5
	defaultBaseDelay   = 2 * time.Second
	defaultFactor      = 2.0

	requestTimeout = 15 * time.Second
)

// Config tunes the probe checks and retry schedule.
type Config struct {
	HTTPClient  *http.Client
	MinBytes    int64
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
}

// Prober issues header-only fetches with exponential backoff.
type Prober struct {
	http     *http.Client
	minBytes int64
	policy   retry.Policy
}

// New constructs a Prober, filling in defaults for unset fields.
func New(cfg Config) *Prober {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = defaultMinBytes
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.Factor <= 1 {
		cfg.Factor = defaultFactor
	}
	return &Prober{
		http:     cfg.HTTPClient,
		minBytes: cfg.MinBytes,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     retry.Exponential(cfg.BaseDelay, cfg.Factor),
		},
	}
}

// Await probes url until it looks like a real, fully-propagated image or the
// attempts run out. Exhaustion returns false rather than an error: the caller
// decides whether to fall back to the unprocessed asset or abort.
func (p *Prober) Await(ctx context.Context, url string) bool {
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		return p.check(ctx, url)
	})
	if err != nil {
		logutil.Warnf("media url not publicly fetchable, giving up: url=%s err=%v", url, err)
		return false
	}
	return true
}

func (p *Prober) check(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("probe: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("probe: content-type %q is not an image", ct)
	}
	// Guards against tiny error pages served with a 200.
	if resp.ContentLength >= 0 && resp.ContentLength < p.minBytes {
		return fmt.Errorf("probe: content-length %d below %d bytes", resp.ContentLength, p.minBytes)
	}
	return nil
}
