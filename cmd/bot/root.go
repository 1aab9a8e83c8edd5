package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

type options struct {
	server string
	debug  bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "dino-bot",
		Short:         "Headless dino runner player",
		Long:          "dino-bot joins a dino runner server over its socket protocol, plays runs with the local physics engine and submits the scores.",
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:5000", "Game server base URL")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newPlayCmd(opts),
		newChatCmd(opts),
		newTopCmd(opts),
	)

	return rootCmd
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// socketURL maps the server's http(s) base URL to its socket endpoint.
func (o *options) socketURL() (string, error) {
	u, err := url.Parse(strings.TrimRight(o.server, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

func (o *options) httpURL() string {
	s := strings.TrimRight(o.server, "/")
	s = strings.Replace(s, "ws://", "http://", 1)
	return strings.Replace(s, "wss://", "https://", 1)
}
