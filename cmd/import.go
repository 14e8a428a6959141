package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"musaix/config"
	"musaix/core/analysis"
	"musaix/core/dispatch"
	"musaix/core/importer"
	"musaix/db"
	"musaix/logger"
	"musaix/repository"
	"musaix/storage"

	"github.com/spf13/cobra"
)

var (
	importDir   string
	importOwner string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Watch a local directory and ingest dropped audio files",
	Long:  `Watch a local directory and push every new audio file through the upload pipeline: object store, pending analysis record and analysis trigger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogFilePath,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})

		dir := importDir
		if dir == "" {
			dir = cfg.ImportDir
		}
		if dir == "" {
			return fmt.Errorf("no import directory: pass --dir or set IMPORT_DIR")
		}
		if importOwner == "" {
			return fmt.Errorf("--owner is required")
		}

		if err := storage.InitMinio(cfg); err != nil {
			return err
		}
		if err := db.ConnectDB(cfg); err != nil {
			return err
		}
		defer db.CloseDB()
		if err := db.ConnectRedis(cfg); err != nil {
			return err
		}
		defer db.CloseRedis()
		if err := db.InitDB(); err != nil {
			return err
		}

		deadLetter := dispatch.NewRedisDeadLetter(db.RedisClient)
		dispatcher := dispatch.NewDispatcher(
			cfg.AnalysisFunctionURL, cfg.WebhookSecret, cfg.AnalysisTimeout,
			cfg.DispatchQueueSize, cfg.DispatchRetries, cfg.DispatchBackoff, deadLetter)
		dispatcher.Start(1)
		defer dispatcher.Stop()

		ingestSvc := analysis.NewIngestService(
			repository.NewPgAnalysisRepository(),
			repository.NewPgUsageLogRepository(),
			dispatcher,
			cfg.AudioBucket)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-stop
			cancel()
		}()

		watcher := importer.NewWatcher(dir, cfg.AudioBucket, importOwner, ingestSvc)
		if err := watcher.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importDir, "dir", "", "directory to watch (defaults to IMPORT_DIR)")
	importCmd.Flags().StringVar(&importOwner, "owner", "", "user id imported files belong to")
	rootCmd.AddCommand(importCmd)
}
