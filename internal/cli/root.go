// Package cli implements the so-auth command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blankcnvs/so-auth/internal/config"
	"github.com/blankcnvs/so-auth/internal/server"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

// SecretEnv holds the account secret for the login command.
const SecretEnv = "SO_AUTH_SECRET"

type options struct {
	configFile string
	v          *viper.Viper
}

// NewRootCommand builds the so-auth command tree. Without a subcommand it
// serves.
func NewRootCommand() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "so-auth",
		Short: "Harvest and cache site session cookies over HTTP.",
		Long: `so-auth signs in to a site's web login form on behalf of a caller,
returns the resulting session cookies and caches them per identity for a
bounded time so repeated requests do not trigger repeated logins.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(o.configFile)
			if err != nil {
				return err
			}
			for key, flag := range map[string]string{
				"port":                  "port",
				"service.name":          "service",
				"observe.logging.level": "log-level",
			} {
				if f := cmd.Flags().Lookup(flag); f != nil {
					if err := v.BindPFlag(key, f); err != nil {
						return err
					}
				}
			}
			o.v = v
			return nil
		},
	}

	root.PersistentFlags().StringVar(&o.configFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("service", "", "site name used in routes and cache keys")
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error")

	serve := newServeCommand(o)
	root.Flags().AddFlagSet(serve.Flags())
	root.RunE = serve.RunE

	root.AddCommand(serve, newLoginCommand(o), newVersionCommand())
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func (o *options) load(ctx context.Context) (config.Config, error) {
	cfg, err := config.Load(ctx, o.v)
	if err != nil {
		return config.Config{}, err
	}
	cfg.Version = Version
	cfg.Observe.Version = Version
	return cfg, nil
}

func newServeCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cookie endpoint (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := o.load(ctx)
			if err != nil {
				return err
			}
			app, err := server.NewApp(ctx, cfg)
			if err != nil {
				return err
			}
			return app.Run(ctx)
		},
	}
	cmd.Flags().Int("port", 0, "listen port (default 3000, or $PORT)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "so-auth", Version)
			return err
		},
	}
}
