package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-scanner/internal/compreface"
	"github.com/kozaktomas/face-scanner/internal/config"
	"github.com/kozaktomas/face-scanner/internal/library"
	"github.com/kozaktomas/face-scanner/internal/scanner"
	"github.com/kozaktomas/face-scanner/internal/store"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path...]",
	Short: "Scan photo directories for known faces",
	Long: `Scan one or more photo directories for known faces.
Photos already scanned are served from the cache; only new content is sent
to CompreFace. Results are grouped by recognized person.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Int("limit", 0, "Limit number of new photos sent for recognition (0 = no limit)")
	scanCmd.Flags().Int("threshold", 0, "Minimum match confidence in percent (default from built-in defaults)")
	scanCmd.Flags().Bool("force", false, "Re-run recognition even for cached photos")
	scanCmd.Flags().Int("concurrency", 0, "Number of photos processed in parallel (default from built-in defaults)")
	scanCmd.Flags().Bool("no-dir-cache", false, "Disable the directory modification-time cache")
	scanCmd.Flags().Bool("verbose", false, "Print a line per photo instead of a progress bar")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	limit := mustGetInt(cmd, "limit")
	threshold := mustGetInt(cmd, "threshold")
	force := mustGetBool(cmd, "force")
	concurrency := mustGetInt(cmd, "concurrency")
	noDirCache := mustGetBool(cmd, "no-dir-cache")
	verbose := mustGetBool(cmd, "verbose")

	if threshold == 0 {
		threshold = cfg.Defaults.Scan.Threshold
	}
	if concurrency == 0 {
		concurrency = cfg.Defaults.Scan.Concurrency
	}

	var roots []string
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid path %s: %w", arg, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", arg)
		}
		roots = append(roots, abs)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	gateway, err := compreface.New(cfg.CompreFace, cfg.Defaults.Gateway)
	if err != nil {
		return fmt.Errorf("failed to create CompreFace client: %w", err)
	}

	// Set up context with signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal...")
		cancel()
	}()

	var dirCache store.DirectoryCache
	if !noDirCache && !force {
		dirCache = st
	}

	var source *library.Source
	stream := func(ctx context.Context, scanID string) <-chan library.File {
		source = library.NewSource(roots, dirCache, scanID)
		return source.Files(ctx)
	}

	// A rough total for the progress bar; cheap because unchanged
	// directories answer from the cache.
	total := library.NewSource(roots, dirCache, "").Estimate(ctx)

	var bar *progressbar.ProgressBar
	opts := scanner.ScanOptions{
		Total:        total,
		Threshold:    float64(threshold),
		NewScanLimit: limit,
		ForceRescan:  force,
		Concurrency:  concurrency,
	}

	if verbose {
		opts.OnVerbose = func(r scanner.VerboseRecord) {
			origin := "scanned"
			if r.CacheHit {
				origin = "cached"
			}
			fmt.Printf("%s [%s]\n", r.Path, origin)
			for _, m := range r.Matches {
				fmt.Printf("  %s (%.0f%%)\n", m.PersonName, m.Confidence)
			}
		}
	} else {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Scanning photos"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		opts.OnProgress = func(p scanner.ProgressInfo) {
			_ = bar.Add(1)
		}
	}

	s := scanner.New(st, gateway)
	result, err := s.Scan(ctx, roots, stream, opts)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	// Print results
	fmt.Printf("\n\nScan %s\n", result.ScanID)
	fmt.Printf("Processed: %d photos (%d cached, %d newly scanned)\n",
		result.PhotosProcessed, result.PhotosCached, result.NewScans)
	fmt.Printf("Matched: %d photos\n", result.MatchesFound)
	if result.LimitReached {
		fmt.Printf("Stopped early: new-scan limit of %d reached\n", limit)
	}

	if len(result.CreatedPeople) > 0 {
		fmt.Printf("\nNew people created from recognition results:\n")
		for _, p := range result.CreatedPeople {
			fmt.Printf("  - %s\n", p.Name)
		}
	}

	if len(result.ByPerson) > 0 {
		names := make([]string, 0, len(result.ByPerson))
		for name := range result.ByPerson {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println("\nMatches by person:")
		for _, name := range names {
			matches := result.ByPerson[name]
			fmt.Printf("  %s (%d photos):\n", name, len(matches))
			for _, m := range matches {
				marker := ""
				switch m.Status {
				case store.StatusApproved:
					marker = " [approved]"
				case store.StatusManual:
					marker = " [manually added]"
				}
				fmt.Printf("    %s (%.0f%%)%s\n", m.Path, m.Confidence, marker)
			}
		}
	}

	if source != nil {
		for _, walkErr := range source.Errors() {
			result.Errors = append(result.Errors, walkErr)
		}
	}
	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors: %d\n", len(result.Errors))
		for _, err := range result.Errors {
			fmt.Printf("  - %v\n", err)
		}
	}

	return nil
}
