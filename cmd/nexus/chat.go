package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nexuscore/agent/internal/orchestrator"
)

func buildChatCmd() *cobra.Command {
	var (
		message   string
		channelID string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "run one agentic turn through the configured loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			if message == "" {
				message, err = readStdinMessage(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read message: %w", err)
				}
			}
			if channelID == "" {
				channelID = "cli"
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reply, err := rt.orchestrator.Run(ctx, orchestrator.Request{
				ChannelID:    channelID,
				SessionID:    sessionID,
				UserMessage:  message,
				WorkspaceDir: mustWorkspace(rt),
				APIKeys:      rt.apiKeys,
			})
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "user message (reads stdin if omitted)")
	cmd.Flags().StringVar(&channelID, "channel", "", "channel id the loop's slot/cancellation is keyed on (default \"cli\")")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id attached to stored memories")
	return cmd
}

func mustWorkspace(rt *runtime) string {
	dir, err := rt.cfg.ResolveWorkspacePath()
	if err != nil {
		return "."
	}
	return dir
}

func readStdinMessage(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

