// Package store persists ingested blog posts: one JSON file per post keyed
// by the slug of its title, plus an index of summaries sorted newest-first.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gosimple/slug"
)

const indexFile = "index.json"

// Block is one structured content unit of a rewritten article.
type Block struct {
	Type  string   `json:"type"`
	Text  string   `json:"text,omitempty"`
	Items []string `json:"items,omitempty"`
}

// Post is the full persisted record of an ingested article.
type Post struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Tags        []string  `json:"tags,omitempty"`
	HeroImage   string    `json:"hero_image,omitempty"`
	SourceURL   string    `json:"source_url"`
	Blocks      []Block   `json:"blocks"`
	PublishedAt time.Time `json:"published_at"`
}

// Summary is the per-post entry kept in the index.
type Summary struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	HeroImage   string    `json:"hero_image,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Store reads and writes post records under a directory.
type Store struct {
	dir string
}

// New constructs a Store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes the post record and rebuilds the index. A post with no slug is
// keyed by the slug of its title; saving the same slug twice replaces the
// record.
func (s *Store) Save(post Post) (Post, error) {
	if post.Slug == "" {
		post.Slug = slug.Make(post.Title)
	}
	if post.Slug == "" {
		return Post{}, fmt.Errorf("post has no title to derive a slug from")
	}
	if post.PublishedAt.IsZero() {
		post.PublishedAt = time.Now().UTC()
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Post{}, fmt.Errorf("create posts dir: %w", err)
	}

	data, err := json.MarshalIndent(post, "", "  ")
	if err != nil {
		return Post{}, fmt.Errorf("encode post: %w", err)
	}
	if err := os.WriteFile(s.postPath(post.Slug), data, 0o644); err != nil {
		return Post{}, fmt.Errorf("write post: %w", err)
	}

	if err := s.updateIndex(post); err != nil {
		return Post{}, err
	}
	return post, nil
}

// Load reads a single post record by slug.
func (s *Store) Load(postSlug string) (Post, error) {
	data, err := os.ReadFile(s.postPath(postSlug))
	if err != nil {
		return Post{}, fmt.Errorf("read post %s: %w", postSlug, err)
	}
	var post Post
	if err := json.Unmarshal(data, &post); err != nil {
		return Post{}, fmt.Errorf("decode post %s: %w", postSlug, err)
	}
	return post, nil
}

// Index returns the post summaries, newest first.
func (s *Store) Index() ([]Summary, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var entries []Summary
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return entries, nil
}

func (s *Store) updateIndex(post Post) error {
	entries, err := s.Index()
	if err != nil {
		return err
	}

	summary := Summary{
		Slug:        post.Slug,
		Title:       post.Title,
		Excerpt:     post.Excerpt,
		HeroImage:   post.HeroImage,
		PublishedAt: post.PublishedAt,
	}

	replaced := false
	for i, entry := range entries {
		if entry.Slug == post.Slug {
			entries[i] = summary
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, summary)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PublishedAt.After(entries[j].PublishedAt)
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, indexFile), data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func (s *Store) postPath(postSlug string) string {
	return filepath.Join(s.dir, postSlug+".json")
}
