// Package graph is a minimal client for the Facebook Graph API covering the
// operations the publishing pipeline needs: token exchange, page and
// Instagram account resolution, and the media container lifecycle. The API
// version is isolated here so the adapters are written once against a stable
// internal contract.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/renomedia/promopost/internal/logutil"
	"github.com/renomedia/promopost/internal/promo"
	"github.com/renomedia/promopost/internal/retry"
)

const (
	// DefaultBaseURL is the Graph API host.
	DefaultBaseURL = "https://graph.facebook.com"
	// DefaultVersion is the Graph API version all calls target.
	DefaultVersion = "v21.0"

	platformName   = "graph"
	requestTimeout = 30 * time.Second

	// Error identifiers the Graph API returns while a media container is
	// still processing. Publishing retries on these and nothing else.
	codeMediaNotReady    = 9007
	subcodeMediaNotReady = 2207027
)

// Config allows the caller to override the API endpoint and version.
type Config struct {
	BaseURL    string
	Version    string
	HTTPClient *http.Client
}

// Client issues Graph API requests.
type Client struct {
	baseURL string
	version string
	http    *http.Client
}

// New constructs a Graph API client, filling in defaults for unset fields.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		version: cfg.Version,
		http:    cfg.HTTPClient,
	}
}

type errorEnvelope struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		IsTransient  bool   `json:"is_transient"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

type accountsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

type pageResponse struct {
	InstagramBusinessAccount *struct {
		ID string `json:"id"`
	} `json:"instagram_business_account"`
}

type idResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	StatusCode string `json:"status_code"`
	ID         string `json:"id"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ResolvePageToken exchanges a long-lived user token for the access token of
// the page identified by pageID, by scanning the pages the user administers.
// The failure modes are configuration problems and are never retried.
func (c *Client) ResolvePageToken(ctx context.Context, userToken, pageID string) (string, error) {
	params := url.Values{}
	params.Set("fields", "id,name,access_token")

	var resp accountsResponse
	if err := c.get(ctx, "me/accounts", params, userToken, &resp); err != nil {
		return "", err
	}
	if resp.Data == nil {
		return "", promo.ConfigurationError{Component: platformName, Reason: "accounts list missing from response; token may lack pages_show_list permission"}
	}

	for _, page := range resp.Data {
		if page.ID != pageID {
			continue
		}
		if page.AccessToken == "" {
			return "", promo.NotFoundError{Component: platformName, What: fmt.Sprintf("access token for page %s", pageID)}
		}
		logutil.Debugf("resolved page token: page=%s name=%s", page.ID, page.Name)
		return page.AccessToken, nil
	}

	return "", promo.NotFoundError{Component: platformName, What: fmt.Sprintf("page %s in managed accounts", pageID)}
}

// ResolveInstagramAccount returns the Instagram business account connected to
// a Facebook page. An unlinked page is a configuration problem, not a
// transient failure.
func (c *Client) ResolveInstagramAccount(ctx context.Context, pageID, pageToken string) (string, error) {
	params := url.Values{}
	params.Set("fields", "instagram_business_account")

	var resp pageResponse
	if err := c.get(ctx, pageID, params, pageToken, &resp); err != nil {
		return "", err
	}
	if resp.InstagramBusinessAccount == nil || resp.InstagramBusinessAccount.ID == "" {
		return "", promo.NotFoundError{Component: platformName, What: fmt.Sprintf("instagram business account linked to page %s", pageID)}
	}
	return resp.InstagramBusinessAccount.ID, nil
}

// ExchangeLongLivedToken trades a short-lived user token for a long-lived one.
func (c *Client) ExchangeLongLivedToken(ctx context.Context, appID, appSecret, shortToken string) (string, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", appID)
	params.Set("client_secret", appSecret)
	params.Set("fb_exchange_token", shortToken)

	var resp tokenResponse
	if err := c.get(ctx, "oauth/access_token", params, "", &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", promo.ConfigurationError{Component: platformName, Reason: "token exchange returned no access token"}
	}
	return resp.AccessToken, nil
}

// ContainerInput describes the media container to create.
type ContainerInput struct {
	AssetURL string
	Caption  string
	Kind     promo.MediaKind
}

// CreateMediaContainer stages a media object on an Instagram account and
// returns its container ID. A non-success response here means the request
// itself is malformed, so it is fatal.
func (c *Client) CreateMediaContainer(ctx context.Context, accountID, token string, in ContainerInput) (string, error) {
	params := url.Values{}
	params.Set("caption", in.Caption)
	if in.Kind == promo.MediaVideo {
		params.Set("media_type", "REELS")
		params.Set("video_url", in.AssetURL)
	} else {
		params.Set("image_url", in.AssetURL)
	}

	var resp idResponse
	if err := c.postForm(ctx, accountID+"/media", params, token, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", promo.PlatformError{Platform: platformName, Message: "media container response missing id"}
	}
	return resp.ID, nil
}

// ContainerStatus polls a container's processing status. Image containers can
// omit the status field entirely; that absence is reported as an empty string
// and treated by callers as ready.
func (c *Client) ContainerStatus(ctx context.Context, containerID, token string) (string, error) {
	params := url.Values{}
	params.Set("fields", "status_code")

	var resp statusResponse
	if err := c.get(ctx, containerID, params, token, &resp); err != nil {
		return "", err
	}
	return resp.StatusCode, nil
}

// AwaitContainerReady polls the container on a fixed interval until it
// reports FINISHED, an explicit error status aborts with a ProcessingError,
// or the time budget elapses.
func (c *Client) AwaitContainerReady(ctx context.Context, containerID, token string, timeout, poll time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		status, err := c.ContainerStatus(ctx, containerID, token)
		if err != nil {
			return err
		}
		switch status {
		case "", "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return promo.ProcessingError{Platform: platformName, Reason: fmt.Sprintf("container %s reported status %s", containerID, status)}
		}
		if time.Now().After(deadline) {
			return promo.ProcessingError{Platform: platformName, Reason: fmt.Sprintf("container %s not finished within %s", containerID, timeout)}
		}
		logutil.Debugf("container processing: id=%s status=%s", containerID, status)
		if err := retry.Sleep(ctx, poll); err != nil {
			return err
		}
	}
}

// PublishContainer issues the final publish call for a finished container and
// returns the platform-assigned post ID.
func (c *Client) PublishContainer(ctx context.Context, accountID, token, containerID string) (string, error) {
	params := url.Values{}
	params.Set("creation_id", containerID)

	var resp idResponse
	if err := c.postForm(ctx, accountID+"/media_publish", params, token, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", promo.PlatformError{Platform: platformName, Message: "media publish response missing id"}
	}
	return resp.ID, nil
}

// PublishPagePhoto posts an image by URL to a Facebook page feed.
func (c *Client) PublishPagePhoto(ctx context.Context, pageID, token, imageURL, caption string) (string, error) {
	params := url.Values{}
	params.Set("url", imageURL)
	params.Set("caption", caption)

	var resp struct {
		PostID string `json:"post_id"`
		ID     string `json:"id"`
	}
	if err := c.postForm(ctx, pageID+"/photos", params, token, &resp); err != nil {
		return "", err
	}
	if resp.PostID != "" {
		return resp.PostID, nil
	}
	if resp.ID == "" {
		return "", promo.PlatformError{Platform: platformName, Message: "photo publish response missing id"}
	}
	return resp.ID, nil
}

// PublishPageVideo posts a hosted video to a Facebook page.
func (c *Client) PublishPageVideo(ctx context.Context, pageID, token, videoURL, description string) (string, error) {
	params := url.Values{}
	params.Set("file_url", videoURL)
	params.Set("description", description)

	var resp idResponse
	if err := c.postForm(ctx, pageID+"/videos", params, token, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", promo.PlatformError{Platform: platformName, Message: "video publish response missing id"}
	}
	return resp.ID, nil
}

// PublishPageLink posts a plain link share with message to a Facebook page.
func (c *Client) PublishPageLink(ctx context.Context, pageID, token, link, message string) (string, error) {
	params := url.Values{}
	params.Set("link", link)
	params.Set("message", message)

	var resp idResponse
	if err := c.postForm(ctx, pageID+"/feed", params, token, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", promo.PlatformError{Platform: platformName, Message: "feed publish response missing id"}
	}
	return resp.ID, nil
}

// IsMediaNotReady reports whether err is the Graph API's "media not ready"
// rejection, the only publish failure worth retrying.
func IsMediaNotReady(err error) bool {
	var pe promo.PlatformError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == codeMediaNotReady || pe.Subcode == subcodeMediaNotReady
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, path)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, token string, out any) error {
	if token != "" {
		params.Set("access_token", token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path)+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, path string, params url.Values, token string, out any) error {
	if token != "" {
		params.Set("access_token", token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return promo.TransientError{Err: fmt.Errorf("graph request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return promo.TransientError{Err: fmt.Errorf("read graph response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return platformError(resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return promo.PlatformError{Platform: platformName, Status: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

func platformError(status int, body []byte) error {
	perr := promo.PlatformError{Platform: platformName, Status: status}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		perr.Message = envelope.Error.Message
		perr.Code = envelope.Error.Code
		perr.Subcode = envelope.Error.ErrorSubcode
		perr.TraceID = envelope.Error.FbtraceID
		if envelope.Error.IsTransient {
			return promo.TransientError{Err: perr}
		}
	}
	return perr
}
