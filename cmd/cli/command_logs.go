package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apiv1 "github.com/SanjoDeundiak/ssh-proxy-bot/api/v1"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/command"
)

func (c *cli) newLogsCmd() *cobra.Command {
	var (
		follow   bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:     "logs",
		Aliases: []string{"read_output"},
		Short:   "Print tunnel output produced since the last read",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(func(client apiv1.TunnelBotClient) error {
				if !follow {
					ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
					defer cancel()

					text, err := send(ctx, client, command.VerbReadOutput)
					if err != nil {
						if isReplyError(err) {
							printReply(cmd.ErrOrStderr(), err.Error())
						}
						return err
					}
					printReply(cmd.OutOrStdout(), text)
					return nil
				}

				// Following prints only the output lines, until the tunnel
				// exits or is stopped or the command is interrupted.
				ctx := cmd.Context()
				for {
					text, err := send(ctx, client, command.VerbReadOutput)
					if err != nil {
						if ctx.Err() != nil {
							return nil
						}
						if isReplyError(err) {
							printReply(cmd.ErrOrStderr(), err.Error())
						}
						return err
					}

					body, exited := splitOutput(text)
					if body != "" {
						printReply(cmd.OutOrStdout(), body)
					}
					if exited {
						printReply(cmd.ErrOrStderr(), command.TextOutputExited)
						return nil
					}

					select {
					case <-ctx.Done():
						return nil
					case <-time.After(interval):
					}
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep reading until the tunnel exits")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "pause between reads when following")
	return cmd
}

// splitOutput strips the header and exit marker from a read_output reply.
func splitOutput(text string) (body string, exited bool) {
	body = strings.TrimPrefix(text, command.TextOutputHeader)
	body = strings.TrimPrefix(body, "\n")
	if strings.HasSuffix(body, command.TextOutputExited) {
		exited = true
		body = strings.TrimSuffix(body, command.TextOutputExited)
		body = strings.TrimSuffix(body, "\n")
	}
	return body, exited
}
