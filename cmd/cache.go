package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-scanner/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache management commands",
	Long:  `Commands for managing the local PostgreSQL scan cache.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache contents",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached scan data",
	Long: `Clear cached scan data.

With --prefix, only directory cache entries at or under the given path are
removed; photo records stay and the next scan re-walks those directories.
With --photos, all photo records, corrections and history are removed too.`,
	RunE: runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().String("prefix", "", "Only invalidate directory entries under this path")
	cacheClearCmd.Flags().Bool("photos", false, "Also remove all photo records, corrections and history")
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}

	fmt.Println("Cache contents:")
	fmt.Printf("  Photos:             %d\n", stats.Photos)
	fmt.Printf("  People:             %d\n", stats.People)
	fmt.Printf("  Corrections:        %d\n", stats.Corrections)
	fmt.Printf("  Scan runs:          %d\n", stats.Scans)
	fmt.Printf("  Directory entries:  %d\n", stats.DirectoryEntries)

	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	prefix := mustGetString(cmd, "prefix")
	clearPhotos := mustGetBool(cmd, "photos")

	if clearPhotos && prefix != "" {
		return fmt.Errorf("--photos cannot be combined with --prefix")
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	removed, err := st.InvalidateDirectories(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to invalidate directory cache: %w", err)
	}
	fmt.Printf("Removed %d directory cache entries\n", removed)

	if clearPhotos {
		if err := st.ClearPhotos(ctx); err != nil {
			return fmt.Errorf("failed to clear photo records: %w", err)
		}
		fmt.Println("Removed all photo records, corrections and history")
	}

	return nil
}
