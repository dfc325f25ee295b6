package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"student-records/internal/app"
	"student-records/internal/config"
	"student-records/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "student-records",
		Short:         "Student records API",
		Long:          `student-records serves CRUD operations over student records and exports them to a spreadsheet.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server (default)",
			RunE:  serve,
		},
		&cobra.Command{
			Use:   "export",
			Short: "Export all students to the configured spreadsheet path and print it",
			RunE:  export,
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Insert the sample students",
			RunE:  seed,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit: %s, built: %s)\n", app.ServiceName, app.Version, app.Commit, app.Date)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, installs the default logger and wires the app.
func bootstrap(ctx context.Context) (*app.App, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewWithServiceContext(logger.Options{
		Env:        cfg.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}, app.ServiceName, app.Version)
	slog.SetDefault(log)

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		return nil, nil, err
	}
	return application, log, nil
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", "error", err)
			_ = application.Close(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		return err
	}

	log.Info("server exited gracefully")
	return nil
}

func export(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, _, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())

	filePath, err := application.Service().ExportStudents(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), filePath)
	return nil
}

func seed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, _, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())

	rollNumbers, err := application.Seed(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d students: %v\n", len(rollNumbers), rollNumbers)
	return nil
}
