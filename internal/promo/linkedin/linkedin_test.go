package linkedin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renomedia/promopost/internal/config"
	"github.com/renomedia/promopost/internal/promo"
)

type stubPreparer struct {
	calls  int
	result string
}

func (s *stubPreparer) Prepare(ctx context.Context, asset promo.MediaAsset, canvas promo.Canvas) (string, error) {
	s.calls++
	if asset.Kind == promo.MediaVideo {
		return asset.SourceURL, nil
	}
	return s.result, nil
}

func TestPublishImageUploadsThenPosts(t *testing.T) {
	var uploadedBytes []byte
	var ugcPayload map[string]any

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/v2/assets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "registerUpload", r.URL.Query().Get("action"))
		assert.Equal(t, "Bearer li-token", r.Header.Get("Authorization"))
		fmt.Fprintf(w, `{"value":{"asset":"urn:li:digitalmediaAsset:abc","uploadMechanism":{"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest":{"uploadUrl":"%s/upload-slot"}}}}`, server.URL)
	})
	mux.HandleFunc("/upload-slot", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		uploadedBytes, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/cdn/social_overlayed/tips.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "rendered-jpeg-bytes")
	})
	mux.HandleFunc("/v2/ugcPosts", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ugcPayload))
		fmt.Fprint(w, `{"id":"urn:li:share:555"}`)
	})

	preparer := &stubPreparer{result: server.URL + "/cdn/social_overlayed/tips.jpg"}
	publisher, err := New(Config{
		Credentials: config.LinkedIn{AccessToken: "li-token", AuthorURN: "urn:li:person:me"},
		Preparer:    preparer,
		BaseURL:     server.URL,
		HTTPClient:  server.Client(),
	})
	require.NoError(t, err)

	result, err := publisher.Publish(context.Background(), promo.Post{
		Title:        "Kitchen Remodel Tips",
		Excerpt:      "Seven upgrades that pay for themselves.",
		Tags:         "flip, reno",
		CanonicalURL: "https://example.com/post",
		Asset: promo.MediaAsset{
			SourceURL: "https://example.com/hero.jpg",
			Kind:      promo.MediaImage,
			Overlay:   &promo.Overlay{Title: "Kitchen Remodel Tips"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "linkedin", result.Platform)
	assert.Equal(t, "urn:li:share:555", result.PostID)
	assert.Equal(t, "rendered-jpeg-bytes", string(uploadedBytes))
	assert.Equal(t, "urn:li:person:me", ugcPayload["author"])
	assert.Equal(t, 1, preparer.calls)
}

func TestPublishVideoSharesLinkWithoutUpload(t *testing.T) {
	var ugcPayload map[string]any
	registerCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/assets", func(w http.ResponseWriter, r *http.Request) {
		registerCalls++
		w.WriteHeader(http.StatusBadRequest)
	})
	mux.HandleFunc("/v2/ugcPosts", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ugcPayload))
		fmt.Fprint(w, `{"id":"urn:li:share:556"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	publisher, err := New(Config{
		Credentials: config.LinkedIn{AccessToken: "li-token", AuthorURN: "urn:li:person:me"},
		Preparer:    &stubPreparer{},
		BaseURL:     server.URL,
		HTTPClient:  server.Client(),
	})
	require.NoError(t, err)

	result, err := publisher.Publish(context.Background(), promo.Post{
		Title:        "Walkthrough",
		CanonicalURL: "https://example.com/walkthrough",
		Asset: promo.MediaAsset{
			SourceURL: "https://example.com/walkthrough.mp4",
			Kind:      promo.MediaVideo,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "urn:li:share:556", result.PostID)
	assert.Zero(t, registerCalls, "video posts skip the image upload")

	content := ugcPayload["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)
	assert.Equal(t, "ARTICLE", content["shareMediaCategory"])
}

func TestPublishRejectionIsPlatformError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/assets", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Invalid access token","status":401}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	publisher, err := New(Config{
		Credentials: config.LinkedIn{AccessToken: "bad", AuthorURN: "urn:li:person:me"},
		Preparer:    &stubPreparer{result: "https://cdn.example/social_overlayed/tips.jpg"},
		BaseURL:     server.URL,
		HTTPClient:  server.Client(),
	})
	require.NoError(t, err)

	_, err = publisher.Publish(context.Background(), promo.Post{
		Title: "Kitchen Remodel Tips",
		Asset: promo.MediaAsset{
			SourceURL: "https://example.com/hero.jpg",
			Kind:      promo.MediaImage,
		},
	})
	var pe promo.PlatformError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Invalid access token", pe.Message)
}
