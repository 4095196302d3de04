// Package mastodon cross-posts the promo content to a Mastodon instance.
package mastodon

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	mastodonapi "github.com/mattn/go-mastodon"

	"github.com/renomedia/promopost/internal/config"
	"github.com/renomedia/promopost/internal/promo"
)

const (
	providerName = "mastodon"
	captionLimit = 500

	requestTimeout = 30 * time.Second
)

// Config wires the adapter's collaborators.
type Config struct {
	Credentials config.Mastodon
	Preparer    promo.AssetPreparer
	HTTPClient  *http.Client
}

// Client implements promo.Publisher for Mastodon.
type Client struct {
	api      *mastodonapi.Client
	preparer promo.AssetPreparer
	http     *http.Client
}

// New constructs a Mastodon publisher.
func New(cfg Config) (*Client, error) {
	if cfg.Preparer == nil {
		return nil, fmt.Errorf("mastodon: asset preparer is required")
	}

	api := mastodonapi.NewClient(&mastodonapi.Config{
		Server:      cfg.Credentials.Server,
		AccessToken: cfg.Credentials.AccessToken,
	})
	api.Timeout = requestTimeout

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	return &Client{api: api, preparer: cfg.Preparer, http: httpClient}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Publish posts a status with the prepared overlay image attached. Video
// assets are linked rather than re-uploaded.
func (c *Client) Publish(ctx context.Context, post promo.Post) (promo.Result, error) {
	status := promo.BuildCaption(promo.CaptionParts{
		Title:   post.Title,
		Excerpt: post.Excerpt,
		Tags:    post.Tags,
		URL:     post.CanonicalURL,
	}, captionLimit)

	var mediaIDs []mastodonapi.ID
	var assetURL string
	if post.Asset.Kind == promo.MediaImage && post.Asset.SourceURL != "" {
		prepared, err := c.preparer.Prepare(ctx, post.Asset, promo.CanvasSquare)
		if err != nil {
			return promo.Result{}, err
		}
		assetURL = prepared

		attachment, err := c.uploadMedia(ctx, prepared, post.Title)
		if err != nil {
			return promo.Result{}, err
		}
		mediaIDs = append(mediaIDs, attachment.ID)
	}

	created, err := c.api.PostStatus(ctx, &mastodonapi.Toot{
		Status:   status,
		MediaIDs: mediaIDs,
	})
	if err != nil {
		return promo.Result{}, fmt.Errorf("post status: %w", err)
	}

	return promo.Result{
		Platform: providerName,
		PostID:   string(created.ID),
		MediaURL: assetURL,
	}, nil
}

func (c *Client) uploadMedia(ctx context.Context, url, alt string) (*mastodonapi.Attachment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, promo.TransientError{Err: fmt.Errorf("fetch prepared asset: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch prepared asset: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, promo.TransientError{Err: fmt.Errorf("read prepared asset: %w", err)}
	}

	attachment, err := c.api.UploadMediaFromMedia(ctx, &mastodonapi.Media{
		File:        bytes.NewReader(data),
		Description: alt,
	})
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}
	return attachment, nil
}
