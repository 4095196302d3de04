package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renomedia/promopost/internal/promo"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := New(Config{BaseURL: server.URL, Version: "v21.0", HTTPClient: server.Client()})
	return client, server
}

func TestResolvePageTokenReturnsMatchingPage(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/me/accounts", r.URL.Path)
		assert.Equal(t, "user-token", r.URL.Query().Get("access_token"))
		fmt.Fprint(w, `{"data":[
			{"id":"111","name":"Other Page","access_token":"other-token"},
			{"id":"42","name":"Reno Page","access_token":"page-token"}
		]}`)
	}))
	defer server.Close()

	token, err := client.ResolvePageToken(context.Background(), "user-token", "42")
	require.NoError(t, err)
	assert.Equal(t, "page-token", token)
}

func TestResolvePageTokenUnknownPage(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"111","access_token":"other-token"}]}`)
	}))
	defer server.Close()

	_, err := client.ResolvePageToken(context.Background(), "user-token", "42")
	var nfe promo.NotFoundError
	assert.ErrorAs(t, err, &nfe)
}

func TestResolvePageTokenMissingAccountsList(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	_, err := client.ResolvePageToken(context.Background(), "user-token", "42")
	var cfe promo.ConfigurationError
	assert.ErrorAs(t, err, &cfe)
}

func TestResolvePageTokenMatchWithoutToken(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"42","name":"Reno Page"}]}`)
	}))
	defer server.Close()

	_, err := client.ResolvePageToken(context.Background(), "user-token", "42")
	var nfe promo.NotFoundError
	assert.ErrorAs(t, err, &nfe)
}

func TestResolveInstagramAccount(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/42", r.URL.Path)
		assert.Equal(t, "instagram_business_account", r.URL.Query().Get("fields"))
		fmt.Fprint(w, `{"instagram_business_account":{"id":"ig-9"},"id":"42"}`)
	}))
	defer server.Close()

	id, err := client.ResolveInstagramAccount(context.Background(), "42", "page-token")
	require.NoError(t, err)
	assert.Equal(t, "ig-9", id)
}

func TestResolveInstagramAccountNotLinked(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"42"}`)
	}))
	defer server.Close()

	_, err := client.ResolveInstagramAccount(context.Background(), "42", "page-token")
	var nfe promo.NotFoundError
	assert.ErrorAs(t, err, &nfe)
}

func TestCreateMediaContainerImage(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/v21.0/ig-9/media", r.URL.Path)
		assert.Equal(t, "https://cdn.example/social_overlayed/tips.jpg", r.PostForm.Get("image_url"))
		assert.Empty(t, r.PostForm.Get("video_url"))
		fmt.Fprint(w, `{"id":"container-1"}`)
	}))
	defer server.Close()

	id, err := client.CreateMediaContainer(context.Background(), "ig-9", "page-token", ContainerInput{
		AssetURL: "https://cdn.example/social_overlayed/tips.jpg",
		Caption:  "Kitchen Remodel Tips",
		Kind:     promo.MediaImage,
	})
	require.NoError(t, err)
	assert.Equal(t, "container-1", id)
}

func TestCreateMediaContainerVideoUsesReels(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "REELS", r.PostForm.Get("media_type"))
		assert.Equal(t, "https://cdn.example/walkthrough.mp4", r.PostForm.Get("video_url"))
		fmt.Fprint(w, `{"id":"container-2"}`)
	}))
	defer server.Close()

	id, err := client.CreateMediaContainer(context.Background(), "ig-9", "page-token", ContainerInput{
		AssetURL: "https://cdn.example/walkthrough.mp4",
		Kind:     promo.MediaVideo,
	})
	require.NoError(t, err)
	assert.Equal(t, "container-2", id)
}

func TestCreateMediaContainerRejection(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid parameter","code":100,"fbtrace_id":"abc"}}`)
	}))
	defer server.Close()

	_, err := client.CreateMediaContainer(context.Background(), "ig-9", "page-token", ContainerInput{
		AssetURL: "https://cdn.example/bad.jpg",
		Kind:     promo.MediaImage,
	})
	var pe promo.PlatformError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 100, pe.Code)
	assert.Equal(t, "abc", pe.TraceID)
}

func TestAwaitContainerReadyPollsUntilFinished(t *testing.T) {
	statuses := []string{"IN_PROGRESS", "IN_PROGRESS", "FINISHED"}
	polls := 0
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/container-1", r.URL.Path)
		status := statuses[polls]
		polls++
		fmt.Fprintf(w, `{"status_code":%q,"id":"container-1"}`, status)
	}))
	defer server.Close()

	err := client.AwaitContainerReady(context.Background(), "container-1", "page-token", time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, polls, "must return after the third poll and not before")
}

func TestAwaitContainerReadyErrorStatusAbortsImmediately(t *testing.T) {
	statuses := []string{"IN_PROGRESS", "ERROR", "FINISHED"}
	polls := 0
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := statuses[polls]
		polls++
		fmt.Fprintf(w, `{"status_code":%q}`, status)
	}))
	defer server.Close()

	err := client.AwaitContainerReady(context.Background(), "container-1", "page-token", time.Second, time.Millisecond)
	var pe promo.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, polls, "must stop polling on ERROR")
}

func TestAwaitContainerReadyMissingStatusMeansReady(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"container-1"}`)
	}))
	defer server.Close()

	assert.NoError(t, client.AwaitContainerReady(context.Background(), "container-1", "page-token", time.Second, time.Millisecond))
}

func TestAwaitContainerReadyTimesOut(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status_code":"IN_PROGRESS"}`)
	}))
	defer server.Close()

	err := client.AwaitContainerReady(context.Background(), "container-1", "page-token", 20*time.Millisecond, 5*time.Millisecond)
	var pe promo.ProcessingError
	assert.ErrorAs(t, err, &pe)
}

func TestIsMediaNotReady(t *testing.T) {
	assert.True(t, IsMediaNotReady(promo.PlatformError{Code: 9007}))
	assert.True(t, IsMediaNotReady(promo.PlatformError{Subcode: 2207027}))
	assert.False(t, IsMediaNotReady(promo.PlatformError{Code: 100}))
	assert.False(t, IsMediaNotReady(assert.AnError))
}

func TestExchangeLongLivedToken(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/oauth/access_token", r.URL.Path)
		assert.Equal(t, "fb_exchange_token", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "short", r.URL.Query().Get("fb_exchange_token"))
		fmt.Fprint(w, `{"access_token":"long-lived","token_type":"bearer","expires_in":5183944}`)
	}))
	defer server.Close()

	token, err := client.ExchangeLongLivedToken(context.Background(), "app", "secret", "short")
	require.NoError(t, err)
	assert.Equal(t, "long-lived", token)
}

func TestTransientGraphErrorIsRetryable(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"Please retry","code":2,"is_transient":true}}`)
	}))
	defer server.Close()

	_, err := client.PublishContainer(context.Background(), "ig-9", "page-token", "container-1")
	assert.True(t, promo.IsTransient(err))
}
