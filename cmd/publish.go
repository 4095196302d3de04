package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/renomedia/promopost/internal/assets"
	"github.com/renomedia/promopost/internal/cloudinary"
	"github.com/renomedia/promopost/internal/config"
	"github.com/renomedia/promopost/internal/graph"
	"github.com/renomedia/promopost/internal/logutil"
	"github.com/renomedia/promopost/internal/probe"
	"github.com/renomedia/promopost/internal/promo"
	"github.com/renomedia/promopost/internal/promo/facebook"
	"github.com/renomedia/promopost/internal/promo/instagram"
	"github.com/renomedia/promopost/internal/promo/linkedin"
	"github.com/renomedia/promopost/internal/promo/mastodon"
)

var (
	publishTargets []string
	publishDryRun  bool
)

var supportedTargets = map[string]struct{}{
	"facebook":  {},
	"instagram": {},
	"linkedin":  {},
	"mastodon":  {},
}

var allTargets = []string{"facebook", "instagram", "linkedin", "mastodon"}

func newPublishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the configured post to social networks",
		Long: "publish reads the post content and credentials from the environment, " +
			"prepares a social overlay image where needed, and publishes to the " +
			"selected targets. On success a JSON summary is written to stdout.",
		Args: cobra.NoArgs,
		RunE: runPublish,
	}

	cmd.Flags().StringSliceVar(&publishTargets, "target", []string{"facebook", "instagram"}, "Targets to publish to (facebook, instagram, linkedin, mastodon, or all)")
	cmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "Print actions without publishing")
	cmd.Flags().SortFlags = false

	return cmd
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	targets, err := normalizeTargets(publishTargets)
	if err != nil {
		return err
	}

	content, err := config.LoadContent()
	if err != nil {
		return err
	}
	post := content.Post()

	publishers, err := buildPublishers(targets)
	if err != nil {
		return err
	}

	return dispatch(ctx, publishers, post, cmd.OutOrStdout(), publishDryRun)
}

func normalizeTargets(values []string) ([]string, error) {
	if len(values) == 0 {
		return sortedTargets(allTargets), nil
	}

	result := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, raw := range values {
		raw = strings.TrimSpace(strings.ToLower(raw))
		if raw == "" {
			continue
		}
		if raw == "all" {
			return sortedTargets(allTargets), nil
		}
		if _, ok := supportedTargets[raw]; !ok {
			return nil, fmt.Errorf("unsupported target %q", raw)
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		result = append(result, raw)
	}

	if len(result) == 0 {
		return nil, errors.New("no targets selected")
	}

	return sortedTargets(result), nil
}

func sortedTargets(targets []string) []string {
	out := append([]string(nil), targets...)
	sort.Strings(out)
	return out
}

// buildPublishers validates every target's configuration before any network
// call is made; a run with broken credentials fails here, not mid-pipeline.
func buildPublishers(targets []string) ([]promo.Publisher, error) {
	cdn, err := config.LoadCDN()
	if err != nil {
		return nil, err
	}
	uploader := cloudinary.New(cloudinary.Config{
		CloudName: cdn.CloudName,
		APIKey:    cdn.APIKey,
		APISecret: cdn.APISecret,
	})
	preparer := assets.NewPreparer(uploader, nil)
	prober := probe.New(probe.Config{})

	graphClient := graph.New(graph.Config{})

	constructors := map[string]func() (promo.Publisher, error){
		"facebook": func() (promo.Publisher, error) {
			creds, err := config.LoadGraph()
			if err != nil {
				return nil, err
			}
			return facebook.New(facebook.Config{
				Graph:       graphClient,
				Credentials: creds,
				Preparer:    preparer,
				Prober:      prober,
			})
		},
		"instagram": func() (promo.Publisher, error) {
			creds, err := config.LoadGraph()
			if err != nil {
				return nil, err
			}
			return instagram.New(instagram.Config{
				Graph:       graphClient,
				Credentials: creds,
				Preparer:    preparer,
				Prober:      prober,
			})
		},
		"linkedin": func() (promo.Publisher, error) {
			creds, err := config.LoadLinkedIn()
			if err != nil {
				return nil, err
			}
			return linkedin.New(linkedin.Config{
				Credentials: creds,
				Preparer:    preparer,
				Prober:      prober,
			})
		},
		"mastodon": func() (promo.Publisher, error) {
			creds, err := config.LoadMastodon()
			if err != nil {
				return nil, err
			}
			return mastodon.New(mastodon.Config{
				Credentials: creds,
				Preparer:    preparer,
			})
		},
	}

	publishers := make([]promo.Publisher, 0, len(targets))
	var errs []error
	for _, target := range targets {
		constructor, ok := constructors[target]
		if !ok {
			errs = append(errs, fmt.Errorf("target %q is not implemented", target))
			continue
		}
		publisher, err := constructor()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
			continue
		}
		publishers = append(publishers, publisher)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(publishers) == 0 {
		return nil, errors.New("no targets available")
	}
	return publishers, nil
}

type publishSummary struct {
	OK      bool           `json:"ok"`
	Results []promo.Result `json:"results"`
}

func dispatch(ctx context.Context, publishers []promo.Publisher, post promo.Post, out io.Writer, simulate bool) error {
	if simulate {
		for _, publisher := range publishers {
			fmt.Fprintf(out, "[dry-run] would publish to %s: %q\n", publisher.Name(), post.Title)
		}
		if post.Asset.SourceURL != "" {
			fmt.Fprintf(out, "[dry-run] media: %s (kind: %s)\n", post.Asset.SourceURL, post.Asset.Kind)
		}
		return nil
	}

	summary := publishSummary{OK: true}
	for _, publisher := range publishers {
		logutil.Infof("publishing to %s...", publisher.Name())
		result, err := publisher.Publish(ctx, post)
		if err != nil {
			return fmt.Errorf("%s: %w", publisher.Name(), err)
		}
		logutil.Infof("published to %s: post_id=%s", publisher.Name(), result.PostID)
		summary.Results = append(summary.Results, result)
	}

	encoder := json.NewEncoder(out)
	return encoder.Encode(summary)
}
