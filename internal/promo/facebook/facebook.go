// Package facebook publishes prepared media to a Facebook page feed.
package facebook

import (
	"context"
	"fmt"

	"github.com/renomedia/promopost/internal/config"
	"github.com/renomedia/promopost/internal/graph"
	"github.com/renomedia/promopost/internal/logutil"
	"github.com/renomedia/promopost/internal/probe"
	"github.com/renomedia/promopost/internal/promo"
)

const (
	providerName = "facebook"
	captionLimit = 2200
)

// Config wires the adapter's collaborators.
type Config struct {
	Graph       *graph.Client
	Credentials config.Graph
	Preparer    promo.AssetPreparer
	Prober      *probe.Prober
}

// Client implements promo.Publisher for Facebook pages.
type Client struct {
	cfg Config
}

// New constructs a Facebook page publisher.
func New(cfg Config) (*Client, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("facebook: graph client is required")
	}
	if cfg.Preparer == nil {
		return nil, fmt.Errorf("facebook: asset preparer is required")
	}
	return &Client{cfg: cfg}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Publish resolves the page token, prepares the asset, and posts it to the
// page. Pages accept hosted media directly, so there is no container wait.
func (c *Client) Publish(ctx context.Context, post promo.Post) (promo.Result, error) {
	pageToken, err := c.cfg.Graph.ResolvePageToken(ctx, c.cfg.Credentials.UserToken, c.cfg.Credentials.PageID)
	if err != nil {
		return promo.Result{}, err
	}

	caption := promo.BuildCaption(promo.CaptionParts{
		Title:   post.Title,
		Excerpt: post.Excerpt,
		Tags:    post.Tags,
		URL:     post.CanonicalURL,
	}, captionLimit)

	if post.Asset.SourceURL == "" {
		postID, err := c.cfg.Graph.PublishPageLink(ctx, c.cfg.Credentials.PageID, pageToken, post.CanonicalURL, caption)
		if err != nil {
			return promo.Result{}, err
		}
		return promo.Result{Platform: providerName, PostID: postID}, nil
	}

	assetURL, err := c.cfg.Preparer.Prepare(ctx, post.Asset, promo.CanvasSquare)
	if err != nil {
		return promo.Result{}, err
	}

	if post.Asset.Kind == promo.MediaImage && c.cfg.Prober != nil && assetURL != post.Asset.SourceURL {
		if !c.cfg.Prober.Await(ctx, assetURL) {
			logutil.Warnf("falling back to original asset: url=%s", post.Asset.SourceURL)
			assetURL = post.Asset.SourceURL
		}
	}

	var postID string
	if post.Asset.Kind == promo.MediaVideo {
		postID, err = c.cfg.Graph.PublishPageVideo(ctx, c.cfg.Credentials.PageID, pageToken, assetURL, caption)
	} else {
		postID, err = c.cfg.Graph.PublishPagePhoto(ctx, c.cfg.Credentials.PageID, pageToken, assetURL, caption)
	}
	if err != nil {
		return promo.Result{}, err
	}

	return promo.Result{
		Platform: providerName,
		PostID:   postID,
		MediaURL: assetURL,
	}, nil
}
