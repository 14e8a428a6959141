package cmd

import (
	"context"
	"fmt"
	"time"

	"musaix/config"
	"musaix/logger"
	"musaix/storage"

	"github.com/spf13/cobra"
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Verify the MinIO connection and audio bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger.InitLogger(logger.Config{Level: logger.LogLevel(cfg.LogLevel)})

		if err := storage.InitMinio(cfg); err != nil {
			return fmt.Errorf("MinIO check failed: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client := storage.GetMinioClient()
		buckets, err := client.ListBuckets(ctx)
		if err != nil {
			return fmt.Errorf("failed to list buckets: %w", err)
		}

		fmt.Printf("MinIO connection OK, %d bucket(s):\n", len(buckets))
		for _, b := range buckets {
			fmt.Printf("  %s (created %s)\n", b.Name, b.CreationDate.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)
}
