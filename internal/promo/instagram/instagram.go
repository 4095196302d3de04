// Package instagram publishes prepared media to an Instagram business
// account through the Graph API container flow: create a media container,
// wait for processing, then publish.
package instagram

import (
	"context"
	"fmt"
	"time"

	"github.com/renomedia/promopost/internal/config"
	"github.com/renomedia/promopost/internal/graph"
	"github.com/renomedia/promopost/internal/logutil"
	"github.com/renomedia/promopost/internal/probe"
	"github.com/renomedia/promopost/internal/promo"
	"github.com/renomedia/promopost/internal/retry"
)

const (
	providerName = "instagram"
	captionLimit = 2200

	defaultReadyTimeout    = 5 * time.Minute
	defaultPollInterval    = 5 * time.Second
	defaultPublishAttempts = 5
	defaultPublishStep     = 10 * time.Second
)

// Config wires the adapter's collaborators and retry knobs.
type Config struct {
	Graph       *graph.Client
	Credentials config.Graph
	Preparer    promo.AssetPreparer
	Prober      *probe.Prober

	ReadyTimeout    time.Duration
	PollInterval    time.Duration
	PublishAttempts int
	PublishStep     time.Duration
}

// Client implements promo.Publisher for Instagram.
type Client struct {
	cfg Config
}

// New constructs an Instagram publisher, filling in defaults for unset knobs.
func New(cfg Config) (*Client, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("instagram: graph client is required")
	}
	if cfg.Preparer == nil {
		return nil, fmt.Errorf("instagram: asset preparer is required")
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PublishAttempts <= 0 {
		cfg.PublishAttempts = defaultPublishAttempts
	}
	if cfg.PublishStep <= 0 {
		cfg.PublishStep = defaultPublishStep
	}
	return &Client{cfg: cfg}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Publish runs the full pipeline: page token, business account, asset
// preparation, availability probe, container creation, readiness wait,
// publish. Any fatal error aborts the run; there is no partial success.
func (c *Client) Publish(ctx context.Context, post promo.Post) (promo.Result, error) {
	pageToken, err := c.cfg.Graph.ResolvePageToken(ctx, c.cfg.Credentials.UserToken, c.cfg.Credentials.PageID)
	if err != nil {
		return promo.Result{}, err
	}

	accountID, err := c.cfg.Graph.ResolveInstagramAccount(ctx, c.cfg.Credentials.PageID, pageToken)
	if err != nil {
		return promo.Result{}, err
	}
	logutil.Debugf("instagram account resolved: id=%s", accountID)

	assetURL, err := c.cfg.Preparer.Prepare(ctx, post.Asset, promo.CanvasPortrait)
	if err != nil {
		return promo.Result{}, err
	}

	// The CDN can lag behind its own upload response. If the hosted asset
	// never becomes fetchable the unprocessed original still publishes.
	if post.Asset.Kind == promo.MediaImage && c.cfg.Prober != nil && assetURL != post.Asset.SourceURL {
		if !c.cfg.Prober.Await(ctx, assetURL) {
			logutil.Warnf("falling back to original asset: url=%s", post.Asset.SourceURL)
			assetURL = post.Asset.SourceURL
		}
	}

	caption := promo.BuildCaption(promo.CaptionParts{
		Title:   post.Title,
		Excerpt: post.Excerpt,
		Tags:    post.Tags,
		URL:     post.CanonicalURL,
	}, captionLimit)

	containerID, err := c.cfg.Graph.CreateMediaContainer(ctx, accountID, pageToken, graph.ContainerInput{
		AssetURL: assetURL,
		Caption:  caption,
		Kind:     post.Asset.Kind,
	})
	if err != nil {
		return promo.Result{}, err
	}
	logutil.Infof("media container created: id=%s", containerID)

	if err := c.cfg.Graph.AwaitContainerReady(ctx, containerID, pageToken, c.cfg.ReadyTimeout, c.cfg.PollInterval); err != nil {
		return promo.Result{}, err
	}

	postID, err := c.publishContainer(ctx, accountID, pageToken, containerID)
	if err != nil {
		return promo.Result{}, err
	}

	return promo.Result{
		Platform:    providerName,
		PostID:      postID,
		ContainerID: containerID,
		MediaURL:    assetURL,
	}, nil
}

// publishContainer retries only on the platform's "media not ready" signal,
// with linear backoff. Anything else fails immediately; exhausting the
// ceiling means the asset never finished processing.
func (c *Client) publishContainer(ctx context.Context, accountID, token, containerID string) (string, error) {
	var postID string
	policy := retry.Policy{
		MaxAttempts: c.cfg.PublishAttempts,
		Backoff:     retry.Linear(c.cfg.PublishStep),
		Retryable: func(err error) bool {
			return graph.IsMediaNotReady(err) || promo.IsTransient(err)
		},
	}

	err := policy.Do(ctx, func(ctx context.Context) error {
		id, err := c.cfg.Graph.PublishContainer(ctx, accountID, token, containerID)
		if err != nil {
			return err
		}
		postID = id
		return nil
	})
	if err != nil {
		if graph.IsMediaNotReady(err) {
			return "", promo.ProcessingError{Platform: providerName, Reason: fmt.Sprintf("container %s still not ready after %d publish attempts", containerID, c.cfg.PublishAttempts)}
		}
		return "", err
	}
	return postID, nil
}
