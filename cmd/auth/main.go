package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/warden/internal/auth/app"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	root := &cobra.Command{
		Use:               "auth",
		Short:             "Warden multi-tenant OAuth2 authorization server",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Version:           app.BuildVersion,
		// Without a subcommand the server starts
		RunE: serve.RunE,
	}

	root.AddCommand(
		serve,
		newPermissionsCmd(),
		newPrivilegesCmd(),
		newUsersCmd(),
		newClientsCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := app.New(app.LoadConfig())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run()
		},
	}
}

// withApp opens the stores for a one-shot command and closes them after.
func withApp(fn func(a *app.Application) error) error {
	cfg := app.LoadConfig()
	cfg.LogOutput = os.Stderr
	a, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}
