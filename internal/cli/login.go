package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blankcnvs/so-auth/internal/server"
)

func newLoginCommand(o *options) *cobra.Command {
	var identity, out string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in once and print the cookie string",
		Long: `login signs in with --identity and the secret from $` + SecretEnv + `,
bypassing the cache, and prints the cookie string. With --out the cookie
string is also written to a file readable only by the owner.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, ok := os.LookupEnv(SecretEnv)
			if !ok || secret == "" {
				return fmt.Errorf("%s is not set", SecretEnv)
			}

			ctx := cmd.Context()
			cfg, err := o.load(ctx)
			if err != nil {
				return err
			}
			cfg.Observe.Metrics.Enabled = false
			cfg.Observe.Logging.Writer = cmd.ErrOrStderr()

			app, err := server.NewApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(ctx) }()

			res, err := app.Fetch(ctx, identity, secret)
			if err != nil {
				return err
			}

			if _, err := fmt.Fprintln(cmd.OutOrStdout(), res.CookieString); err != nil {
				return err
			}
			if out != "" {
				if err := os.WriteFile(out, []byte(res.CookieString), 0o600); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "account identity (e.g. email)")
	cmd.Flags().StringVar(&out, "out", "", "also write the cookie string to this file")
	_ = cmd.MarkFlagRequired("identity")
	return cmd
}
