// Package cloudinary implements the signed image upload used to host
// rendered overlay assets. Request signing is centralized in SignParams so
// the signing order and the request order cannot drift apart.
package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/renomedia/promopost/internal/promo"
)

const (
	// DefaultBaseURL is the Cloudinary upload API host.
	DefaultBaseURL = "https://api.cloudinary.com"

	serviceName    = "cloudinary"
	requestTimeout = 60 * time.Second
)

// Config carries the account credentials and optional endpoint override.
type Config struct {
	CloudName  string
	APIKey     string
	APISecret  string
	BaseURL    string
	HTTPClient *http.Client
}

// Client uploads image bytes to Cloudinary.
type Client struct {
	cfg  Config
	http *http.Client
}

// New constructs a Cloudinary client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// SignParams computes the upload signature: the lexicographically sorted
// key=value pairs joined with '&', concatenated with the API secret, hashed
// with SHA-1. The file payload, api_key, and the signature itself are never
// part of the signed string.
func SignParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	PublicID  string `json:"public_id"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends image bytes as a signed upload under publicID and returns the
// stable public URL of the hosted asset.
func (c *Client) Upload(ctx context.Context, data []byte, publicID string) (string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	signed := map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	}
	signature := SignParams(signed, c.cfg.APISecret)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
		"api_key":   c.cfg.APIKey,
		"signature": signature,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", fmt.Errorf("write form field %s: %w", name, err)
		}
	}
	part, err := writer.CreateFormFile("file", publicID+".jpg")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1_1/%s/image/upload", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", promo.TransientError{Err: fmt.Errorf("cloudinary upload: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", promo.TransientError{Err: fmt.Errorf("read upload response: %w", err)}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", promo.UploadError{Service: serviceName, Reason: fmt.Sprintf("malformed response (status %d)", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := fmt.Sprintf("status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			reason = parsed.Error.Message
		}
		return "", promo.UploadError{Service: serviceName, Reason: reason}
	}

	if parsed.SecureURL != "" {
		return parsed.SecureURL, nil
	}
	if parsed.URL != "" {
		return parsed.URL, nil
	}
	return "", promo.UploadError{Service: serviceName, Reason: "response missing asset url"}
}
