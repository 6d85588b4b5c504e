package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apiv1 "github.com/SanjoDeundiak/ssh-proxy-bot/api/v1"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/command"
)

// clientFactory opens a client; tests replace it with an in-memory one.
type clientFactory func(configPath string) (apiv1.TunnelBotClient, func() error, error)

func dialClient(configPath string) (apiv1.TunnelBotClient, func() error, error) {
	conn, err := dial(configPath)
	if err != nil {
		return nil, nil, err
	}
	return apiv1.NewTunnelBotClient(conn), conn.Close, nil
}

type cli struct {
	configPath string
	newClient  clientFactory
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(dialClient)
}

func newRootCmd(newClient clientFactory) *cobra.Command {
	c := &cli{newClient: newClient}

	root := &cobra.Command{
		Use:           "tunnelctl",
		Short:         "Control the SSH reverse tunnel served by tunnelbotd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file with the transport section")

	root.AddCommand(c.newVerbCmd("start", "Start the ssh reverse tunnel", command.VerbStart, 15*time.Second))
	root.AddCommand(c.newVerbCmd("stop", "Kill the ssh reverse tunnel", command.VerbStop, 15*time.Second))
	root.AddCommand(c.newVerbCmd("status", "Report whether the tunnel is running", command.VerbStatus, 10*time.Second))
	root.AddCommand(c.newVerbCmd("whoami", "Show the identity the server sees", command.VerbWhoAmI, 10*time.Second))
	root.AddCommand(c.newVerbCmd("ping", "Check that the server is alive", command.VerbStartSession, 10*time.Second))
	root.AddCommand(c.newVerbCmd("commands", "List the verbs the server understands", command.VerbHelp, 10*time.Second))
	root.AddCommand(c.newLogsCmd())

	return root
}

// newVerbCmd sends one verb and prints the reply.
func (c *cli) newVerbCmd(use, short, verb string, timeout time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(func(client apiv1.TunnelBotClient) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()

				text, err := send(ctx, client, verb)
				if err != nil {
					if isReplyError(err) {
						printReply(cmd.ErrOrStderr(), err.Error())
					}
					return err
				}
				printReply(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

func (c *cli) withClient(fn func(client apiv1.TunnelBotClient) error) error {
	client, closeFn, err := c.newClient(c.configPath)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer closeFn()
	return fn(client)
}
