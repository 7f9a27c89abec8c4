package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-scanner/internal/config"
	"github.com/kozaktomas/face-scanner/internal/fingerprint"
	"github.com/kozaktomas/face-scanner/internal/store"
)

var photoCmd = &cobra.Command{
	Use:   "photo",
	Short: "Inspect and correct scanned photos",
	Long: `Commands for inspecting a single photo's recognition results and
recording corrections. Photos can be referenced by file path or by
content hash.`,
}

var photoShowCmd = &cobra.Command{
	Use:   "show [path-or-hash]",
	Short: "Show cached recognition results for a photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhotoShow,
}

var photoApproveCmd = &cobra.Command{
	Use:   "approve [path-or-hash] [person]",
	Short: "Confirm a recognized person is correct",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhotoCorrection(args, store.CorrectionApproved)
	},
}

var photoRejectCmd = &cobra.Command{
	Use:   "reject [path-or-hash] [person]",
	Short: "Mark a recognized person as a false positive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhotoCorrection(args, store.CorrectionFalsePositive)
	},
}

var photoAddCmd = &cobra.Command{
	Use:   "add [path-or-hash] [person]",
	Short: "Add a person the recognition missed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhotoCorrection(args, store.CorrectionFalseNegative)
	},
}

func init() {
	rootCmd.AddCommand(photoCmd)
	photoCmd.AddCommand(photoShowCmd)
	photoCmd.AddCommand(photoApproveCmd)
	photoCmd.AddCommand(photoRejectCmd)
	photoCmd.AddCommand(photoAddCmd)
}

// resolveHash turns a photo reference into a content hash. A reference that
// names an existing file is hashed; anything else is taken as a hash.
func resolveHash(ref string) (string, error) {
	if _, err := os.Stat(ref); err == nil {
		fp, err := fingerprint.Compute(ref)
		if err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", ref, err)
		}
		return fp.Digest, nil
	}
	return ref, nil
}

func runPhotoShow(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	hash, err := resolveHash(args[0])
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	rec, err := st.GetPhoto(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to load photo: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("no scan results for %s (has it been scanned?)", args[0])
	}

	fmt.Printf("Photo %s\n", rec.Hash)
	fmt.Printf("  Path: %s\n", rec.Path)
	fmt.Printf("  Size: %d bytes\n", rec.FileSize)
	fmt.Printf("  First seen: %s\n", rec.FirstSeenAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Last seen:  %s\n", rec.LastSeenAt.Format("2006-01-02 15:04:05"))
	if rec.PhotoDate != nil {
		fmt.Printf("  Photo date: %s\n", rec.PhotoDate.Format("2006-01-02"))
	}
	fmt.Printf("  Faces detected: %d\n", rec.FacesDetected)

	matches := rec.EffectiveMatches()
	if len(matches) == 0 {
		fmt.Println("\nNo people recognized.")
	} else {
		fmt.Println("\nRecognized people:")
		for _, m := range matches {
			fmt.Printf("  %s (%.0f%%) [%s]\n", m.PersonName, m.Confidence, rec.StatusFor(m.PersonID))
		}
	}

	// Rejected entries are invisible in the effective set; list them so the
	// review state is complete.
	for _, c := range rec.Corrections {
		if c.Type == store.CorrectionFalsePositive {
			fmt.Printf("  %s [rejected]\n", c.PersonName)
		}
	}

	return nil
}

func runPhotoCorrection(args []string, ctype store.CorrectionType) error {
	cfg := config.Load()

	hash, err := resolveHash(args[0])
	if err != nil {
		return err
	}
	personName := args[1]

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	var person store.Person
	if ctype == store.CorrectionFalseNegative {
		p, created, err := st.EnsurePerson(ctx, personName)
		if err != nil {
			return fmt.Errorf("failed to resolve person: %w", err)
		}
		if created {
			fmt.Printf("Created new person: %s\n", p.Name)
		}
		person = p
	} else {
		p, err := st.FindPersonByName(ctx, personName)
		if err != nil {
			return fmt.Errorf("failed to resolve person: %w", err)
		}
		if p == nil {
			return fmt.Errorf("unknown person: %s", personName)
		}
		person = *p
	}

	applied, err := st.ApplyCorrection(ctx, hash, person.ID, person.Name, ctype)
	if err != nil {
		return fmt.Errorf("failed to apply correction: %w", err)
	}
	if !applied {
		return fmt.Errorf("no scan results for %s (has it been scanned?)", args[0])
	}

	switch ctype {
	case store.CorrectionApproved:
		fmt.Printf("Approved %s on %s\n", person.Name, hash)
	case store.CorrectionFalsePositive:
		fmt.Printf("Rejected %s on %s\n", person.Name, hash)
	case store.CorrectionFalseNegative:
		fmt.Printf("Added %s to %s\n", person.Name, hash)
	}

	return nil
}
