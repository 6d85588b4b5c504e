package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/command"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/config"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/logging"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/output_storage"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/supervisor"
)

const shutdownTimeout = 5 * time.Second

func main() {
	root := newRootCmd()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	serve := func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), configPath, os.Stderr)
	}

	root := &cobra.Command{
		Use:           "tunnelbotd",
		Short:         "Operator-controlled SSH reverse tunnel",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./"+config.DefaultConfigFile+")")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve operator commands (default)",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})
	root.AddCommand(newConfigCmd(&configPath))

	return root
}

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the merged configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(*configPath)
			if err != nil {
				return err
			}
			cfg, err := config.Decode(v)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg.Redacted()); err != nil {
				return err
			}
			return enc.Close()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and show the launch command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(*configPath)
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			launch, err := cfg.LaunchCommand()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok\nlaunch command: %s\n", launch)
			return nil
		},
	})

	return cmd
}

// app wires the supervisor, the router and the gRPC service together.
type app struct {
	supervisor *supervisor.Supervisor
	router     *command.Router
	service    *TunnelBotServiceServer
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	launch, err := cfg.LaunchCommand()
	if err != nil {
		return nil, err
	}

	opts := cfg.SupervisorOptions()
	opts.Logger = logger
	sup, err := supervisor.New(cfg.OperatorIdentity(), launch, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create supervisor: %w", err)
	}

	router, err := command.NewRouter(sup, cfg.OperatorIdentity(), logger)
	if err != nil {
		return nil, err
	}

	return &app{
		supervisor: sup,
		router:     router,
		service:    NewTunnelBotServiceServer(router, logger),
	}, nil
}

func runServer(ctx context.Context, configPath string, logOut io.Writer) error {
	v, err := config.NewViper(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger := logging.New(logOut, cfg.Logging.Level, cfg.Logging.Format)
	output_storage.SetLogger(logger)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	srv, err := NewGRPCServer(cfg.Transport, a.service, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("server (TLS) listening", "address", srv.Addr().String(), "operator", string(cfg.OperatorIdentity()), "launch", a.supervisor.LaunchCommand())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	var serveErr error
	select {
	case serveErr = <-errCh:
		logger.Error("failed to serve", "err", serveErr)
	case <-ctx.Done():
		logger.Info("shutting down")
		srv.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.supervisor.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to kill tunnel on shutdown", "err", err)
		serveErr = errors.Join(serveErr, err)
	}
	return serveErr
}
