package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-scanner/internal/config"
)

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "Inspect past scan runs",
}

var scansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent scan runs",
	RunE:  runScansList,
}

func init() {
	rootCmd.AddCommand(scansCmd)
	scansCmd.AddCommand(scansListCmd)

	scansListCmd.Flags().Int("limit", 20, "Number of runs to show")
}

func runScansList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	limit := mustGetInt(cmd, "limit")

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	scans, err := st.ListScans(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("failed to list scans: %w", err)
	}

	if len(scans) == 0 {
		fmt.Println("No scans recorded yet.")
		return nil
	}

	for _, run := range scans {
		status := "running"
		if run.CompletedAt != nil {
			status = fmt.Sprintf("finished in %s", (time.Duration(run.DurationMs) * time.Millisecond).Round(time.Millisecond))
		}
		fmt.Printf("%s  %s  (%s)\n", run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), status)
		fmt.Printf("  Paths: %s\n", strings.Join(run.SourcePaths, ", "))
		if run.CompletedAt != nil {
			fmt.Printf("  Processed: %d, cached: %d, matched: %d\n",
				run.PhotosProcessed, run.PhotosCached, run.MatchesFound)
		}
	}

	return nil
}
