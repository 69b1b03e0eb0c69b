// Command testex terminates a customer contract across the database, the
// directory, the file share, and the UMA API, then persists a run report.
//
// Exit codes: 0 full success, 1 partial success, 2 total failure,
// 3 startup failure (bad configuration or invalid customer id).
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"testex/audit"
	"testex/config"
	"testex/database"
	"testex/directory"
	"testex/filestore"
	"testex/notify"
	"testex/termination"
	"testex/uma"
)

const exitStartupFailure = 3

var (
	configPath string
	exitCode   int
)

func main() {
	root := &cobra.Command{
		Use:           "testex",
		Short:         "customer contract termination suite",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the configuration file")

	root.AddCommand(newTerminateCmd(), newCheckCmd(), newPurgeStatusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitStartupFailure)
	}
	os.Exit(exitCode)
}

func defaultConfigPath() string {
	if p := os.Getenv("TESTEX_CONFIG"); p != "" {
		return p
	}
	return "testex.yaml"
}

func loadConfig() (*config.Config, *audit.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Logging.Level))); err != nil {
		level = slog.LevelInfo
	}
	sink := audit.New(audit.Options{
		Dir:        cfg.Logging.Dir,
		MinLevel:   level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	return cfg, sink, nil
}

func newTerminateCmd() *cobra.Command {
	var (
		scopeFlag  string
		dryRun     bool
		skipBackup bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "terminate <customer-id>",
		Short: "terminate a customer across the selected backend systems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			customerID := args[0]
			if err := termination.ValidateCustomerID(customerID); err != nil {
				return err
			}
			scope, ok := termination.ParseScope(scopeFlag)
			if !ok {
				return fmt.Errorf("unknown scope %q (want all, database, directory, files, or uma)", scopeFlag)
			}

			cfg, sink, err := loadConfig()
			if err != nil {
				return err
			}
			defer sink.Close()

			mode := termination.Apply
			if dryRun {
				mode = termination.Simulate
			}

			dbAdapter := database.NewAdapter(cfg.Database, sink.Component("database"))
			dirAdapter := directory.NewAdapter(cfg.Directory, sink.Component("directory"))
			fsAdapter := filestore.NewAdapter(cfg.Filestore, sink.Component("filestore"))
			umaAdapter := uma.NewAdapter(cfg.UMA, sink.Component("uma"))
			umaAdapter.Purge = force

			orch := termination.NewOrchestrator(
				dbAdapter, dirAdapter, fsAdapter, umaAdapter,
				termination.Options{SkipBackup: skipBackup, BackupBlocking: cfg.Backup.Blocking},
				sink.Component("orchestrator"))

			report, err := orch.Run(cmd.Context(), customerID, scope, mode)
			if err != nil {
				return err
			}

			log := sink.Component("main")
			exporter := termination.NewExporter(cfg.Reports.Dir)
			if path, err := exporter.Export(report); err != nil {
				log.Error("report export failed", "error", err)
			} else {
				log.Info("report written", "path", path)
			}

			mailer := notify.NewMailer(cfg.Notify, sink.Component("notify"))
			if mailer.Enabled() {
				if err := mailer.Send(report); err != nil {
					log.Error("completion email failed", "error", err)
				}
			}

			fmt.Print(termination.Summary(report))
			exitCode = int(report.Classification)
			return nil
		},
	}

	cmd.Flags().StringVar(&scopeFlag, "scope", string(termination.ScopeAll), "systems to act on: all, database, directory, files, uma")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "simulate: perform lookups but no writes")
	cmd.Flags().BoolVar(&skipBackup, "skip-backup", false, "skip the pre-mutation backup step")
	cmd.Flags().BoolVar(&force, "force", false, "also start the asynchronous UMA purge")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "probe connectivity to all four backend systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sink, err := loadConfig()
			if err != nil {
				return err
			}
			defer sink.Close()

			adapters := []termination.Adapter{
				database.NewAdapter(cfg.Database, sink.Component("database")),
				directory.NewAdapter(cfg.Directory, sink.Component("directory")),
				filestore.NewAdapter(cfg.Filestore, sink.Component("filestore")),
				uma.NewAdapter(cfg.UMA, sink.Component("uma")),
			}

			results := make([]error, len(adapters))
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, a := range adapters {
				g.Go(func() error {
					results[i] = a.HealthCheck(ctx)
					a.Close()
					return nil
				})
			}
			_ = g.Wait()

			healthy := true
			for i, a := range adapters {
				if results[i] != nil {
					healthy = false
					fmt.Printf("  %-12s DOWN    %v\n", a.Name(), results[i])
				} else {
					fmt.Printf("  %-12s ok\n", a.Name())
				}
			}
			if !healthy {
				exitCode = 1
			}
			return nil
		},
	}
}

func newPurgeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-status <purge-id>",
		Short: "query a previously started UMA purge job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sink, err := loadConfig()
			if err != nil {
				return err
			}
			defer sink.Close()

			api := uma.NewAPI(cfg.UMA)
			job, err := api.PurgeStatus(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, uma.ErrNotFound) {
					return fmt.Errorf("purge job %s not found", args[0])
				}
				return err
			}
			fmt.Printf("purge %s for client %s: %s (%d%%)\n", job.PurgeID, job.ClientID, job.Status, job.Progress)
			return nil
		},
	}
}
