package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/renomedia/promopost/internal/config"
	"github.com/renomedia/promopost/internal/ingest"
	"github.com/renomedia/promopost/internal/store"
)

func newIngestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <article-url>",
		Short: "Ingest a source article into a blog post record",
		Long: "ingest fetches the article, extracts its readable text, rewrites it " +
			"with a language model into structured blocks, resolves a hero image, and " +
			"writes the post record plus index entry under the posts directory.",
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	settings, err := config.LoadIngest()
	if err != nil {
		return err
	}

	ingestor, err := ingest.New(ingest.Config{
		Settings: settings,
		Store:    store.New(settings.PostsDir),
	})
	if err != nil {
		return err
	}

	post, err := ingestor.Run(ctx, args[0])
	if err != nil {
		return err
	}

	summary := struct {
		OK        bool   `json:"ok"`
		Slug      string `json:"slug"`
		Title     string `json:"title"`
		HeroImage string `json:"hero_image,omitempty"`
	}{
		OK:        true,
		Slug:      post.Slug,
		Title:     post.Title,
		HeroImage: post.HeroImage,
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
}
