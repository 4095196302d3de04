// Package config builds immutable configuration from the environment, once,
// at process start. Components never read ambient state; they receive these
// structs through their constructors. Every loader validates its required
// variables before any network call happens and names all of the missing
// ones at once.
package config

import (
	"os"
	"strings"

	"github.com/renomedia/promopost/internal/promo"
)

// Environment variable names, enumerated in one place.
const (
	EnvFBUserToken = "PROMO_FB_USER_TOKEN"
	EnvFBPageID    = "PROMO_FB_PAGE_ID"
	EnvFBAppID     = "PROMO_FB_APP_ID"
	EnvFBAppSecret = "PROMO_FB_APP_SECRET"

	EnvCloudName      = "PROMO_CLOUDINARY_CLOUD_NAME"
	EnvCloudAPIKey    = "PROMO_CLOUDINARY_API_KEY"
	EnvCloudAPISecret = "PROMO_CLOUDINARY_API_SECRET"

	EnvLinkedInToken = "PROMO_LINKEDIN_ACCESS_TOKEN"
	EnvLinkedInURN   = "PROMO_LINKEDIN_AUTHOR_URN"

	EnvMastodonServer = "PROMO_MASTODON_SERVER"
	EnvMastodonToken  = "PROMO_MASTODON_ACCESS_TOKEN"

	EnvPostTitle           = "PROMO_POST_TITLE"
	EnvPostExcerpt         = "PROMO_POST_EXCERPT"
	EnvPostTags            = "PROMO_POST_TAGS"
	EnvPostURL             = "PROMO_POST_URL"
	EnvPostMediaURL        = "PROMO_POST_MEDIA_URL"
	EnvPostIsVideo         = "PROMO_POST_IS_VIDEO"
	EnvPostOverlayTitle    = "PROMO_POST_OVERLAY_TITLE"
	EnvPostOverlaySubtitle = "PROMO_POST_OVERLAY_SUBTITLE"

	EnvOpenAIKey   = "PROMO_OPENAI_API_KEY"
	EnvOpenAIModel = "PROMO_OPENAI_MODEL"
	EnvPostsDir    = "PROMO_POSTS_DIR"
)

// Graph holds Facebook/Instagram Graph API credentials.
type Graph struct {
	UserToken string
	PageID    string
	AppID     string
	AppSecret string
}

// LoadGraph reads the Graph credentials required for publishing.
func LoadGraph() (Graph, error) {
	cfg := Graph{
		UserToken: getenv(EnvFBUserToken),
		PageID:    getenv(EnvFBPageID),
		AppID:     getenv(EnvFBAppID),
		AppSecret: getenv(EnvFBAppSecret),
	}

	var missing []string
	if cfg.UserToken == "" {
		missing = append(missing, EnvFBUserToken)
	}
	if cfg.PageID == "" {
		missing = append(missing, EnvFBPageID)
	}
	if len(missing) > 0 {
		return Graph{}, promo.MissingEnvError{Component: "graph", Variables: missing}
	}
	return cfg, nil
}

// LoadGraphApp reads the app credentials needed for the token exchange.
func LoadGraphApp() (Graph, error) {
	cfg := Graph{
		AppID:     getenv(EnvFBAppID),
		AppSecret: getenv(EnvFBAppSecret),
	}

	var missing []string
	if cfg.AppID == "" {
		missing = append(missing, EnvFBAppID)
	}
	if cfg.AppSecret == "" {
		missing = append(missing, EnvFBAppSecret)
	}
	if len(missing) > 0 {
		return Graph{}, promo.MissingEnvError{Component: "graph", Variables: missing}
	}
	return cfg, nil
}

// CDN holds the Cloudinary account credentials.
type CDN struct {
	CloudName string
	APIKey    string
	APISecret string
}

// LoadCDN reads the Cloudinary credentials.
func LoadCDN() (CDN, error) {
	cfg := CDN{
		CloudName: getenv(EnvCloudName),
		APIKey:    getenv(EnvCloudAPIKey),
		APISecret: getenv(EnvCloudAPISecret),
	}

	var missing []string
	if cfg.CloudName == "" {
		missing = append(missing, EnvCloudName)
	}
	if cfg.APIKey == "" {
		missing = append(missing, EnvCloudAPIKey)
	}
	if cfg.APISecret == "" {
		missing = append(missing, EnvCloudAPISecret)
	}
	if len(missing) > 0 {
		return CDN{}, promo.MissingEnvError{Component: "cloudinary", Variables: missing}
	}
	return cfg, nil
}

// LinkedIn holds the member credentials for UGC posting.
type LinkedIn struct {
	AccessToken string
	AuthorURN   string
}

// LoadLinkedIn reads the LinkedIn credentials.
func LoadLinkedIn() (LinkedIn, error) {
	cfg := LinkedIn{
		AccessToken: getenv(EnvLinkedInToken),
		AuthorURN:   getenv(EnvLinkedInURN),
	}

	var missing []string
	if cfg.AccessToken == "" {
		missing = append(missing, EnvLinkedInToken)
	}
	if cfg.AuthorURN == "" {
		missing = append(missing, EnvLinkedInURN)
	}
	if len(missing) > 0 {
		return LinkedIn{}, promo.MissingEnvError{Component: "linkedin", Variables: missing}
	}
	return cfg, nil
}

// Mastodon holds the instance credentials.
type Mastodon struct {
	Server      string
	AccessToken string
}

// LoadMastodon reads the Mastodon credentials.
func LoadMastodon() (Mastodon, error) {
	cfg := Mastodon{
		Server:      getenv(EnvMastodonServer),
		AccessToken: getenv(EnvMastodonToken),
	}

	var missing []string
	if cfg.Server == "" {
		missing = append(missing, EnvMastodonServer)
	}
	if cfg.AccessToken == "" {
		missing = append(missing, EnvMastodonToken)
	}
	if len(missing) > 0 {
		return Mastodon{}, promo.MissingEnvError{Component: "mastodon", Variables: missing}
	}
	return cfg, nil
}

// Content holds the per-post fields of a publish run.
type Content struct {
	Title           string
	Excerpt         string
	Tags            string
	CanonicalURL    string
	MediaURL        string
	IsVideo         bool
	OverlayTitle    string
	OverlaySubtitle string
}

// LoadContent reads the post content for a publish run. The overlay title
// defaults to the post title unless overridden.
func LoadContent() (Content, error) {
	cfg := Content{
		Title:           getenv(EnvPostTitle),
		Excerpt:         getenv(EnvPostExcerpt),
		Tags:            getenv(EnvPostTags),
		CanonicalURL:    getenv(EnvPostURL),
		MediaURL:        getenv(EnvPostMediaURL),
		IsVideo:         isTruthy(getenv(EnvPostIsVideo)),
		OverlayTitle:    getenv(EnvPostOverlayTitle),
		OverlaySubtitle: getenv(EnvPostOverlaySubtitle),
	}
	if cfg.OverlayTitle == "" {
		cfg.OverlayTitle = cfg.Title
	}

	var missing []string
	if cfg.Title == "" {
		missing = append(missing, EnvPostTitle)
	}
	if cfg.MediaURL == "" {
		missing = append(missing, EnvPostMediaURL)
	}
	if len(missing) > 0 {
		return Content{}, promo.MissingEnvError{Component: "content", Variables: missing}
	}
	return cfg, nil
}

// Asset builds the MediaAsset this content describes.
func (c Content) Asset() promo.MediaAsset {
	asset := promo.MediaAsset{
		SourceURL: c.MediaURL,
		Kind:      promo.MediaImage,
	}
	if c.IsVideo {
		asset.Kind = promo.MediaVideo
		return asset
	}
	asset.Overlay = &promo.Overlay{
		Title:    c.OverlayTitle,
		Subtitle: c.OverlaySubtitle,
	}
	return asset
}

// Post builds the publish payload this content describes.
func (c Content) Post() promo.Post {
	return promo.Post{
		Title:        c.Title,
		Excerpt:      c.Excerpt,
		Tags:         c.Tags,
		CanonicalURL: c.CanonicalURL,
		Asset:        c.Asset(),
	}
}

// Ingest holds the article-ingestion settings.
type Ingest struct {
	OpenAIKey   string
	OpenAIModel string
	PostsDir    string
}

// LoadIngest reads the ingestion settings.
func LoadIngest() (Ingest, error) {
	cfg := Ingest{
		OpenAIKey:   getenv(EnvOpenAIKey),
		OpenAIModel: getenv(EnvOpenAIModel),
		PostsDir:    getenv(EnvPostsDir),
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.PostsDir == "" {
		cfg.PostsDir = "content/posts"
	}

	if cfg.OpenAIKey == "" {
		return Ingest{}, promo.MissingEnvError{Component: "ingest", Variables: []string{EnvOpenAIKey}}
	}
	return cfg, nil
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}
