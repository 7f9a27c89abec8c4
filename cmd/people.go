package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-scanner/internal/config"
	"github.com/kozaktomas/face-scanner/internal/photoprismdb"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage known people",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all known people",
	RunE:  runPeopleList,
}

var peopleSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import named people from a PhotoPrism database",
	Long: `Import named person subjects from a PhotoPrism MariaDB instance so
recognition results map onto identities already curated there.
Requires PHOTOPRISM_DATABASE_URL.`,
	RunE: runPeopleSync,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleListCmd)
	peopleCmd.AddCommand(peopleSyncCmd)
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	people, err := st.ListPeople(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list people: %w", err)
	}

	if len(people) == 0 {
		fmt.Println("No people known yet. Run a scan or 'people sync' first.")
		return nil
	}

	fmt.Printf("Known people (%d):\n", len(people))
	for _, p := range people {
		fmt.Printf("  %s (since %s)\n", p.Name, p.CreatedAt.Format("2006-01-02"))
	}

	return nil
}

func runPeopleSync(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.PhotoPrism.DatabaseURL == "" {
		return errors.New("PHOTOPRISM_DATABASE_URL environment variable is required")
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	pool, err := photoprismdb.NewPool(cfg.PhotoPrism.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PhotoPrism database: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	subjects, err := pool.ListSubjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list PhotoPrism subjects: %w", err)
	}

	var created, known int
	for _, subj := range subjects {
		_, isNew, err := st.EnsurePerson(ctx, subj.Name)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", subj.Name, err)
		}
		if isNew {
			created++
			fmt.Printf("  + %s (%d files in PhotoPrism)\n", subj.Name, subj.FileCount)
		} else {
			known++
		}
	}

	fmt.Printf("\nImported %d new people, %d already known\n", created, known)
	return nil
}
