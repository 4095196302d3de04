// Package linkedin publishes prepared media as a UGC post: register an
// upload slot, PUT the image bytes, then create the post referencing the
// uploaded asset.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/renomedia/promopost/internal/config"
	"github.com/renomedia/promopost/internal/logutil"
	"github.com/renomedia/promopost/internal/probe"
	"github.com/renomedia/promopost/internal/promo"
)

const (
	providerName = "linkedin"
	captionLimit = 2800

	// DefaultBaseURL is the LinkedIn REST host.
	DefaultBaseURL = "https://api.linkedin.com"

	uploadRecipe   = "urn:li:digitalmediaRecipe:feedshare-image"
	requestTimeout = 60 * time.Second
)

// Config wires the adapter's collaborators.
type Config struct {
	Credentials config.LinkedIn
	Preparer    promo.AssetPreparer
	Prober      *probe.Prober
	BaseURL     string
	HTTPClient  *http.Client
}

// Client implements promo.Publisher for LinkedIn.
type Client struct {
	cfg  Config
	http *http.Client
}

// New constructs a LinkedIn publisher.
func New(cfg Config) (*Client, error) {
	if cfg.Preparer == nil {
		return nil, fmt.Errorf("linkedin: asset preparer is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{cfg: cfg, http: httpClient}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Publish prepares the asset and creates the UGC post. Video posts skip the
// image upload and share the canonical link instead; LinkedIn renders its
// own preview for those.
func (c *Client) Publish(ctx context.Context, post promo.Post) (promo.Result, error) {
	commentary := promo.BuildCaption(promo.CaptionParts{
		Title:   post.Title,
		Excerpt: post.Excerpt,
		Tags:    post.Tags,
		URL:     post.CanonicalURL,
	}, captionLimit)

	if post.Asset.Kind == promo.MediaVideo || post.Asset.SourceURL == "" {
		postID, err := c.createPost(ctx, commentary, "", post.CanonicalURL)
		if err != nil {
			return promo.Result{}, err
		}
		return promo.Result{Platform: providerName, PostID: postID}, nil
	}

	assetURL, err := c.cfg.Preparer.Prepare(ctx, post.Asset, promo.CanvasSquare)
	if err != nil {
		return promo.Result{}, err
	}
	if c.cfg.Prober != nil && assetURL != post.Asset.SourceURL {
		if !c.cfg.Prober.Await(ctx, assetURL) {
			logutil.Warnf("falling back to original asset: url=%s", post.Asset.SourceURL)
			assetURL = post.Asset.SourceURL
		}
	}

	assetURN, err := c.uploadImage(ctx, assetURL)
	if err != nil {
		return promo.Result{}, err
	}

	postID, err := c.createPost(ctx, commentary, assetURN, "")
	if err != nil {
		return promo.Result{}, err
	}

	return promo.Result{
		Platform: providerName,
		PostID:   postID,
		MediaURL: assetURL,
	}, nil
}

type registerUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism struct {
			Request struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

func (c *Client) uploadImage(ctx context.Context, imageURL string) (string, error) {
	payload := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{uploadRecipe},
			"owner":   c.cfg.Credentials.AuthorURN,
			"serviceRelationships": []map[string]string{{
				"relationshipType": "OWNER",
				"identifier":       "urn:li:userGeneratedContent",
			}},
		},
	}

	var registered registerUploadResponse
	if err := c.post(ctx, "/v2/assets?action=registerUpload", payload, &registered); err != nil {
		return "", err
	}
	uploadURL := registered.Value.UploadMechanism.Request.UploadURL
	if registered.Value.Asset == "" || uploadURL == "" {
		return "", promo.PlatformError{Platform: providerName, Message: "register upload response missing asset or upload url"}
	}

	data, err := c.fetch(ctx, imageURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Credentials.AccessToken)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", promo.TransientError{Err: fmt.Errorf("upload image: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", promo.PlatformError{Platform: providerName, Status: resp.StatusCode, Message: "binary upload rejected"}
	}

	logutil.Debugf("linkedin asset uploaded: urn=%s bytes=%d", registered.Value.Asset, len(data))
	return registered.Value.Asset, nil
}

func (c *Client) createPost(ctx context.Context, commentary, assetURN, articleURL string) (string, error) {
	content := map[string]any{
		"shareCommentary":    map[string]string{"text": commentary},
		"shareMediaCategory": "NONE",
	}
	switch {
	case assetURN != "":
		content["shareMediaCategory"] = "IMAGE"
		content["media"] = []map[string]any{{
			"status": "READY",
			"media":  assetURN,
		}}
	case articleURL != "":
		content["shareMediaCategory"] = "ARTICLE"
		content["media"] = []map[string]any{{
			"status":      "READY",
			"originalUrl": articleURL,
		}}
	}

	payload := map[string]any{
		"author":         c.cfg.Credentials.AuthorURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": content,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v2/ugcPosts", payload, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", promo.PlatformError{Platform: providerName, Message: "ugc post response missing id"}
	}
	return created.ID, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Credentials.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return promo.TransientError{Err: fmt.Errorf("linkedin request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return promo.TransientError{Err: fmt.Errorf("read linkedin response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return promo.PlatformError{Platform: providerName, Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return promo.PlatformError{Platform: providerName, Status: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
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
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}
