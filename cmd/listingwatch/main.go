package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"listingwatch/analyzer"
	"listingwatch/api"
	"listingwatch/config"
	"listingwatch/dashboard"
	"listingwatch/logging"
	"listingwatch/orchestrator"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"

	envFile    string
	jsonOutput bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "listingwatch",
		Short: "Watch disclosure portals for H-share listing milestones",
		Long: `listingwatch polls HKEXnews and CNINFO for announcements about the
target issuer, keeps the milestone events it has not alerted on before,
and delivers them to Telegram, webhooks, Kafka, S3 or the console.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file instead of .env")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newTestAlertCmd(),
		newServeCmd(),
		newLedgerCmd(),
		newClassifyCmd(),
		newWatchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger every command shares
func setup() (config.Config, *zap.Logger, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
				return
			}
			fmt.Printf("listingwatch %s (%s, %s)\n", version, commit, buildDate)
		},
	}
}

func newRunCmd() *cobra.Command {
	var test bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one monitoring pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), test)
		},
	}
	cmd.Flags().BoolVar(&test, "test", false, "Send one synthetic alert instead of polling sources")
	return cmd
}

func newTestAlertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-alert",
		Short: "Send a synthetic alert to every configured channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), true)
		},
	}
}

func runOnce(ctx context.Context, test bool) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctxOrBackground(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := orchestrator.NewRunner(cfg, orchestrator.DefaultDeps(), logger)
	summary, err := runner.Run(ctx, orchestrator.RunOptions{Test: test})
	if jsonOutput {
		printJSON(summary)
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 && summary.Delivered == 0 {
		return fmt.Errorf("all %d deliveries failed", summary.Failed)
	}
	return nil
}

func newServeCmd() *cobra.Command {
	var port, schedule string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the monitor on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if port == "" {
				port = cfg.Server.Port
			}
			if schedule == "" {
				schedule = cfg.Server.CronSchedule
			}

			runner := orchestrator.NewRunner(cfg, orchestrator.DefaultDeps(), logger)
			server := api.NewServer(runner, api.NewRouter(runner, cfg, logger), port, logger)
			errCh := server.Start()

			if schedule != "off" {
				if err := server.StartCron(schedule); err != nil {
					return err
				}
				logger.Info("Next scheduled run", zap.Time("at", server.NextRun()))
			}

			// Wait for interrupt signal
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
			case err, ok := <-errCh:
				if ok && err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "HTTP API port (default $PORT or 8080)")
	cmd.Flags().StringVar(&schedule, "cron", "", `Cron schedule for automated runs, "off" to disable (default $CRON_SCHEDULE)`)
	return cmd
}

func newLedgerCmd() *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the dedup ledger",
	}

	var withHashes bool
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print ledger backend, size and last update",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			info, err := orchestrator.InspectLedger(ctxOrBackground(cmd.Context()), cfg, nil, logger, withHashes)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(info)
				return nil
			}

			fmt.Printf("backend:      %s\n", info.Backend)
			fmt.Printf("hashes:       %d\n", info.Count)
			if info.LastUpdated.IsZero() {
				fmt.Println("last updated: never")
			} else {
				fmt.Printf("last updated: %s\n", info.LastUpdated.Format(time.RFC3339))
			}
			for _, h := range info.Hashes {
				fmt.Println(h)
			}
			return nil
		},
	}
	stats.Flags().BoolVar(&withHashes, "hashes", false, "Also list every hash")
	ledgerCmd.AddCommand(stats)
	return ledgerCmd
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <title>",
		Short: "Show how a title would be filtered and classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			title := strings.Join(args, " ")
			a := analyzer.New(cfg.Taxonomy)
			eventType, ok := a.IdentifyEventType(title, "")

			result := map[string]any{
				"title":         title,
				"entity":        a.MatchesEntity(title),
				"excluded":      a.ContainsExcludeKeyword(title),
				"event_type":    string(eventType),
				"matched":       ok,
				"supplementary": a.ExtractSupplementaryInfo(title),
			}
			if jsonOutput {
				printJSON(result)
				return nil
			}

			fmt.Printf("entity:     %v\n", result["entity"])
			fmt.Printf("excluded:   %v\n", result["excluded"])
			if ok {
				fmt.Printf("event type: %s (%s)\n", eventType, eventType.DisplayName())
			} else {
				fmt.Println("event type: none")
			}
			for k, v := range a.ExtractSupplementaryInfo(title) {
				fmt.Printf("  %s: %s\n", k, v)
			}
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live terminal dashboard for a running serve instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			program := tea.NewProgram(dashboard.NewModel(serverURL))

			// Handle graceful shutdown
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				program.Quit()
			}()

			_, err := program.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&serverURL, "url", "http://localhost:"+config.DefaultPort, "listingwatch serve URL")
	return cmd
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
