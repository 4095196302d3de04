package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/renomedia/promopost/internal/config"
	"github.com/renomedia/promopost/internal/graph"
)

func newTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Exchange a short-lived user token for a long-lived one",
		Long: "token prompts for a short-lived Graph API user token (input is not " +
			"echoed) and exchanges it for the long-lived token the publish commands " +
			"expect in " + config.EnvFBUserToken + ".",
		Args: cobra.NoArgs,
		RunE: runToken,
	}
}

func runToken(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := config.LoadGraphApp()
	if err != nil {
		return err
	}

	shortToken, err := readToken(cmd)
	if err != nil {
		return err
	}

	client := graph.New(graph.Config{})
	longToken, err := client.ExchangeLongLivedToken(ctx, app.AppID, app.AppSecret, shortToken)
	if err != nil {
		return err
	}

	summary := struct {
		OK          bool   `json:"ok"`
		AccessToken string `json:"access_token"`
	}{OK: true, AccessToken: longToken}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
}

func readToken(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "short-lived token: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		token := strings.TrimSpace(string(raw))
		if token == "" {
			return "", errors.New("token is required")
		}
		return token, nil
	}

	// Piped input: read a single line from stdin.
	var token string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &token); err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("token is required")
	}
	return token, nil
}
