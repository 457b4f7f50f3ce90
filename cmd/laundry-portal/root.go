package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/laundrypro/portal/internal/pkg/config"
)

const (
	Version = "0.1.0"
	appName = "laundry-portal"
)

func rootCmd() *cobra.Command {
	var (
		a        *app
		logLevel string
		baseURL  string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "LaundryPro portal server and session CLI",
		Long: `laundry-portal serves the LaundryPro portal: it keeps one signed-in
session against the LaundryPro backend, guards the role areas of the portal
and refreshes the dashboards.

The account commands drive the same session from the terminal. With the file
or redis session backend, a running server follows what the CLI does.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsApp(cmd) {
				return nil
			}
			cfg, err := config.LoadFrom(cmd.Context(), envconfig.OsLookuper())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if baseURL != "" {
				cfg.API.BaseURL = baseURL
			}
			a, err = newApp(cmd.Context(), cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return a.Close(ctx)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); overrides LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&baseURL, "api", "", "Backend base URL; overrides API_BASE_URL")

	get := func() *app { return a }
	cmd.AddCommand(
		serveCmd(get),
		loginCmd(get),
		logoutCmd(get),
		whoamiCmd(get),
		navCmd(get),
		registerCmd(get),
		setupAdminCmd(get),
		forgotPasswordCmd(get),
		resetPasswordCmd(get),
		auditCmd(get),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

// needsApp reports whether cmd works on the session. Version, help and
// shell completion do not.
func needsApp(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return false
	}
	return !cmd.HasParent() || cmd.Parent().Name() != "completion"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
