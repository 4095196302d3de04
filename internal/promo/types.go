package promo

import "context"

// MediaKind distinguishes how an asset is prepared and published.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Overlay holds the text composited onto a social image.
type Overlay struct {
	Title    string
	Subtitle string
}

// MediaAsset is a publicly reachable media URL plus rendering hints.
// An asset is prepared once and consumed once by a publisher.
type MediaAsset struct {
	SourceURL string
	Kind      MediaKind
	Overlay   *Overlay
}

// Canvas is the fixed output size of a rendered overlay image.
type Canvas struct {
	Width  int
	Height int
}

var (
	// CanvasSquare is the 1:1 feed format.
	CanvasSquare = Canvas{Width: 1080, Height: 1080}
	// CanvasPortrait is the ~4:5 feed format.
	CanvasPortrait = Canvas{Width: 1080, Height: 1350}
)

// Post defines the content payload shared across all platforms.
type Post struct {
	Title        string
	Excerpt      string
	Tags         string
	CanonicalURL string
	Asset        MediaAsset
}

// Result identifies what a publisher created remotely.
type Result struct {
	Platform    string `json:"platform"`
	PostID      string `json:"post_id"`
	ContainerID string `json:"container_id,omitempty"`
	MediaURL    string `json:"media_url,omitempty"`
}

// Publisher abstracts a social platform that can publish content.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, post Post) (Result, error)
}

// AssetPreparer produces a publish-ready public URL for an asset.
// Video assets pass through unchanged; images are re-rendered and re-hosted.
type AssetPreparer interface {
	Prepare(ctx context.Context, asset MediaAsset, canvas Canvas) (string, error)
}
