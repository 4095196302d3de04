// Package ingest turns a source article URL into a persisted blog post:
// fetch the page, extract its readable text, rewrite it with a language
// model into structured content blocks, resolve or generate a hero image,
// and save the record. This pipeline is independent of publishing; external
// automation typically runs ingest first and the publish commands after.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	openai "github.com/sashabaranov/go-openai"

	"github.com/renomedia/promopost/internal/config"
	"github.com/renomedia/promopost/internal/logutil"
	"github.com/renomedia/promopost/internal/store"
)

const (
	fetchTimeout = 30 * time.Second

	// maxSourceChars bounds how much article text is sent to the model.
	maxSourceChars = 12000

	rewriteSystemPrompt = `You are an editor for a home renovation marketing blog.
Rewrite the provided article into original content. Respond with a JSON object:
{"title": string, "excerpt": string (1-2 sentences), "tags": [string],
"blocks": [{"type": "heading"|"paragraph"|"list", "text": string, "items": [string]}]}.
Headings and paragraphs use "text"; lists use "items". Keep it factual, skip
any promotion present in the source, and write 5-10 blocks.`
)

// Config wires the ingestor's collaborators.
type Config struct {
	Settings   config.Ingest
	Store      *store.Store
	HTTPClient *http.Client
	// OpenAI overrides the client built from Settings; used by tests.
	OpenAI *openai.Client
}

// Ingestor runs the article ingestion pipeline.
type Ingestor struct {
	settings config.Ingest
	store    *store.Store
	http     *http.Client
	ai       *openai.Client
}

// New constructs an Ingestor.
func New(cfg Config) (*Ingestor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ingest: store is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	ai := cfg.OpenAI
	if ai == nil {
		ai = openai.NewClient(cfg.Settings.OpenAIKey)
	}
	return &Ingestor{
		settings: cfg.Settings,
		store:    cfg.Store,
		http:     httpClient,
		ai:       ai,
	}, nil
}

type rewritten struct {
	Title   string        `json:"title"`
	Excerpt string        `json:"excerpt"`
	Tags    []string      `json:"tags"`
	Blocks  []store.Block `json:"blocks"`
}

// Run executes the full ingestion pipeline for one article URL and returns
// the saved post record.
func (ing *Ingestor) Run(ctx context.Context, articleURL string) (store.Post, error) {
	article, err := ing.extract(ctx, articleURL)
	if err != nil {
		return store.Post{}, err
	}
	logutil.Infof("article extracted: title=%q chars=%d", article.Title, len(article.TextContent))

	content, err := ing.rewrite(ctx, article.Title, article.TextContent)
	if err != nil {
		return store.Post{}, err
	}

	hero := article.Image
	if hero == "" {
		hero, err = ing.generateHeroImage(ctx, content.Title)
		if err != nil {
			return store.Post{}, err
		}
	}

	post, err := ing.store.Save(store.Post{
		Title:     content.Title,
		Excerpt:   content.Excerpt,
		Tags:      content.Tags,
		HeroImage: hero,
		SourceURL: articleURL,
		Blocks:    content.Blocks,
	})
	if err != nil {
		return store.Post{}, err
	}
	logutil.Infof("post saved: slug=%s blocks=%d", post.Slug, len(post.Blocks))
	return post, nil
}

func (ing *Ingestor) extract(ctx context.Context, articleURL string) (readability.Article, error) {
	parsed, err := url.Parse(articleURL)
	if err != nil {
		return readability.Article{}, fmt.Errorf("parse article url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return readability.Article{}, fmt.Errorf("build article request: %w", err)
	}
	resp, err := ing.http.Do(req)
	if err != nil {
		return readability.Article{}, fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readability.Article{}, fmt.Errorf("fetch article: status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return readability.Article{}, fmt.Errorf("extract article: %w", err)
	}
	if strings.TrimSpace(article.TextContent) == "" {
		return readability.Article{}, fmt.Errorf("article %s has no readable text", articleURL)
	}
	return article, nil
}

func (ing *Ingestor) rewrite(ctx context.Context, title, text string) (rewritten, error) {
	if runes := []rune(text); len(runes) > maxSourceChars {
		text = string(runes[:maxSourceChars])
	}

	resp, err := ing.ai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: ing.settings.OpenAIModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rewriteSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Title: %s\n\n%s", title, text)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return rewritten{}, fmt.Errorf("rewrite article: %w", err)
	}
	if len(resp.Choices) == 0 {
		return rewritten{}, fmt.Errorf("rewrite article: model returned no choices")
	}

	var content rewritten
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &content); err != nil {
		return rewritten{}, fmt.Errorf("decode rewritten article: %w", err)
	}
	if content.Title == "" || len(content.Blocks) == 0 {
		return rewritten{}, fmt.Errorf("rewritten article is missing title or blocks")
	}
	return content, nil
}

func (ing *Ingestor) generateHeroImage(ctx context.Context, title string) (string, error) {
	resp, err := ing.ai.CreateImage(ctx, openai.ImageRequest{
		Prompt:         fmt.Sprintf("Editorial photo for a home renovation article titled %q. No text in the image.", title),
		Model:          openai.CreateImageModelDallE3,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("generate hero image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("generate hero image: empty response")
	}
	return resp.Data[0].URL, nil
}
