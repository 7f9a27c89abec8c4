package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-scanner/internal/config"
	"github.com/kozaktomas/face-scanner/internal/store/postgres"
)

var rootCmd = &cobra.Command{
	Use:   "face-scanner",
	Short: "A CLI tool for finding people in a photo library",
	Long: `Face Scanner walks a photo library, sends photos to a CompreFace
instance for face recognition and caches the results in PostgreSQL keyed
by photo content. Repeated scans reuse the cache, so only new photos cost
a recognition call, and human corrections survive rescans.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// openStore connects to the cache database configured via DATABASE_URL.
func openStore(cfg *config.Config) (*postgres.Store, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	st, err := postgres.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	return st, nil
}
