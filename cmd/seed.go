package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yahya305/Daaktar-Saab/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Embed the symptom corpus and load it into the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("file")
		explicit := path != ""
		if !explicit {
			path = cfg.Seed.Path
		}
		entries, err := loadCorpus(path, explicit)
		if err != nil {
			return fmt.Errorf("load corpus: %w", err)
		}

		if cfg.Index.Backend == "memory" {
			return fmt.Errorf("the memory index is rebuilt on every start; seeding it has no lasting effect")
		}

		d, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		batch, _ := cmd.Flags().GetInt("batch")
		quiet, _ := cmd.Flags().GetBool("quiet")
		s := &seed.Seeder{
			Embedder:  d.embedder,
			Writer:    d.index,
			BatchSize: batch,
			Logger:    logger,
		}
		if !quiet {
			s.Progress = func(done, total int) {
				fmt.Printf("\rSeeded %d/%d", done, total)
			}
		}

		n, err := s.Run(ctx, entries)
		if !quiet {
			fmt.Println()
		}
		if err != nil {
			return err
		}

		total, err := d.index.Count(ctx)
		if err != nil {
			return fmt.Errorf("count index: %w", err)
		}
		fmt.Printf("Seeded %d records with %s. The index now holds %d records.\n", n, d.embedder.ModelID(), total)
		if cfg.Index.Backend != "qdrant" {
			fmt.Println("A running `daaktar serve` picks these up on SIGHUP or restart.")
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().StringP("file", "f", "", "Corpus JSON file (default seed.path, falling back to the bundled corpus)")
	seedCmd.Flags().Int("batch", seed.DefaultBatchSize, "Entries embedded per request")
	seedCmd.Flags().BoolP("quiet", "q", false, "Do not print progress")
}
