package cmd

import (
	"fmt"

	"musaix/config"
	"musaix/db"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Verify the Redis connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		if err := db.ConnectRedis(cfg); err != nil {
			return fmt.Errorf("redis check failed: %w", err)
		}
		defer db.CloseRedis()

		if err := db.TestRedis(); err != nil {
			return fmt.Errorf("redis round-trip failed: %w", err)
		}

		fmt.Println("Redis connection OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
