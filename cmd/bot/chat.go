package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dino-runner/internal/client"
	"github.com/dino-runner/internal/domain"
)

func newChatCmd(opts *options) *cobra.Command {
	var name string
	var react string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Post a chat message, or react to the latest one",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" && react == "" {
				return fmt.Errorf("nothing to send: give a message or --react")
			}
			return runChat(cmd, opts, name, text, react)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Sender name")
	cmd.Flags().StringVar(&react, "react", "", "Emoji to toggle on the latest message")

	return cmd
}

func runChat(cmd *cobra.Command, opts *options, name, text, react string) error {
	ctx := cmd.Context()
	wsURL, err := opts.socketURL()
	if err != nil {
		return err
	}

	c, err := client.Dial(ctx, wsURL, opts.logger(cmd))
	if err != nil {
		return err
	}
	defer c.Close()

	readyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := c.WaitReady(readyCtx); err != nil {
		return fmt.Errorf("wait for session: %w", err)
	}

	var checks []func([]domain.ChatMessage) bool
	if react != "" {
		history := c.Chat()
		if len(history) == 0 {
			return fmt.Errorf("no chat messages to react to")
		}
		target := history[len(history)-1]
		before := len(target.Reactions[react])
		if err := c.React(target.ID, react); err != nil {
			return err
		}
		checks = append(checks, func(msgs []domain.ChatMessage) bool {
			for _, m := range msgs {
				if m.ID == target.ID {
					return len(m.Reactions[react]) != before
				}
			}
			return true
		})
	}
	if text != "" {
		want := len(c.Chat()) + 1
		if err := c.SendChat(text, name); err != nil {
			return err
		}
		checks = append(checks, func(msgs []domain.ChatMessage) bool {
			return len(msgs) >= want
		})
	}

	// Wait for the echo so the change is committed before we hang up.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for !allHold(checks, c.Chat()) {
		select {
		case <-readyCtx.Done():
			return fmt.Errorf("no echo from server: %w", readyCtx.Err())
		case <-ticker.C:
		}
	}

	for _, m := range c.Chat() {
		fmt.Fprintf(cmd.OutOrStdout(), "#%d %s: %s %s\n", m.ID, m.PlayerName, m.Text, formatReactions(m.Reactions))
	}
	return nil
}

func allHold(checks []func([]domain.ChatMessage) bool, msgs []domain.ChatMessage) bool {
	for _, ok := range checks {
		if !ok(msgs) {
			return false
		}
	}
	return true
}
