// -- cmd/lookup.go --
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/0xjcr/chrome-osint-extension/internal/browser"
	"github.com/0xjcr/chrome-osint-extension/internal/lookup"
	"github.com/0xjcr/chrome-osint-extension/internal/observability"
	"github.com/0xjcr/chrome-osint-extension/internal/store"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <username>",
	Short: "Check public sources for a username and print a JSON report.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

func init() {
	lookupCmd.Flags().StringSlice("sources", nil, "restrict the run to these sources (default: all)")
	lookupCmd.Flags().String("browser-host", "", "host of the Chrome remote debugging endpoint")
	lookupCmd.Flags().Int("browser-port", 0, "port of the Chrome remote debugging endpoint")

	viper.BindPFlag("lookup.sources", lookupCmd.Flags().Lookup("sources"))
	viper.BindPFlag("browser.host", lookupCmd.Flags().Lookup("browser-host"))
	viper.BindPFlag("browser.port", lookupCmd.Flags().Lookup("browser-port"))

	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	username := args[0]
	log := observability.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := browser.Connect(ctx, appCfg.Browser, appCfg.Network, log)
	if err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	defer manager.Close()

	extractors := lookup.DefaultExtractors(appCfg.Lookup.Sources)
	if len(extractors) == 0 {
		return fmt.Errorf("no known sources match %v", appCfg.Lookup.Sources)
	}

	runner := lookup.NewRunner(manager, extractors, appCfg.Lookup, log)
	report := runner.Run(ctx, username)

	if dbURL := appCfg.Database.URL; dbURL != "" {
		if err := persistReport(ctx, dbURL, report, log); err != nil {
			log.Warn("failed to persist report", zap.Error(err))
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func persistReport(ctx context.Context, dbURL string, report *lookup.Report, log *zap.Logger) error {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	st, err := store.New(ctx, pool, log)
	if err != nil {
		return err
	}
	return st.SaveReport(ctx, report)
}
