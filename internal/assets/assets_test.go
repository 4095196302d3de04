package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renomedia/promopost/internal/promo"
)

type captureUploader struct {
	mu       sync.Mutex
	calls    int
	publicID string
	data     []byte
	err      error
}

func (u *captureUploader) Upload(ctx context.Context, data []byte, publicID string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	u.publicID = publicID
	u.data = data
	if u.err != nil {
		return "", u.err
	}
	return "https://cdn.example/" + publicID + ".jpg", nil
}

func sourceImageServer(t *testing.T) *httptest.Server {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(buf.Bytes())
	}))
}

func TestPrepareVideoIsIdentity(t *testing.T) {
	uploader := &captureUploader{}
	preparer := NewPreparer(uploader, nil)

	url, err := preparer.Prepare(context.Background(), promo.MediaAsset{
		SourceURL: "https://example.com/walkthrough.mp4",
		Kind:      promo.MediaVideo,
	}, promo.CanvasSquare)

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/walkthrough.mp4", url)
	assert.Zero(t, uploader.calls, "video preparation must make zero transformation calls")
}

func TestPrepareImageRendersAndUploads(t *testing.T) {
	server := sourceImageServer(t)
	defer server.Close()

	uploader := &captureUploader{}
	preparer := NewPreparer(uploader, server.Client())

	url, err := preparer.Prepare(context.Background(), promo.MediaAsset{
		SourceURL: server.URL + "/hero.jpg",
		Kind:      promo.MediaImage,
		Overlay:   &promo.Overlay{Title: "Kitchen Remodel Tips", Subtitle: "renomedia.example"},
	}, promo.CanvasPortrait)

	require.NoError(t, err)
	assert.Contains(t, url, "social_overlayed")
	assert.True(t, strings.HasSuffix(url, ".jpg"))
	assert.Equal(t, 1, uploader.calls)
	assert.Contains(t, uploader.publicID, "social_overlayed/kitchen-remodel-tips-")

	rendered, _, err := image.Decode(bytes.NewReader(uploader.data))
	require.NoError(t, err)
	assert.Equal(t, 1080, rendered.Bounds().Dx())
	assert.Equal(t, 1350, rendered.Bounds().Dy())
}

func TestPrepareSourceFetchFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	uploader := &captureUploader{}
	preparer := NewPreparer(uploader, server.Client())

	_, err := preparer.Prepare(context.Background(), promo.MediaAsset{
		SourceURL: server.URL + "/missing.jpg",
		Kind:      promo.MediaImage,
		Overlay:   &promo.Overlay{Title: "Gone"},
	}, promo.CanvasSquare)

	var sue SourceUnavailableError
	require.ErrorAs(t, err, &sue)
	assert.Zero(t, uploader.calls)
}

func TestPrepareUploadFailurePropagates(t *testing.T) {
	server := sourceImageServer(t)
	defer server.Close()

	uploader := &captureUploader{err: promo.UploadError{Service: "cloudinary", Reason: "invalid signature"}}
	preparer := NewPreparer(uploader, server.Client())

	_, err := preparer.Prepare(context.Background(), promo.MediaAsset{
		SourceURL: server.URL + "/hero.jpg",
		Kind:      promo.MediaImage,
		Overlay:   &promo.Overlay{Title: "Kitchen Remodel Tips"},
	}, promo.CanvasSquare)

	var ue promo.UploadError
	assert.ErrorAs(t, err, &ue)
}

func TestPublicIDFallsBackWithoutTitle(t *testing.T) {
	id := publicIDFor("")
	assert.True(t, strings.HasPrefix(id, "social_overlayed/promo-"), fmt.Sprintf("got %q", id))
}
