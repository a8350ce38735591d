package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yahya305/Daaktar-Saab/internal/store"
)

var turnsCmd = &cobra.Command{
	Use:   "turns",
	Short: "Inspect recorded consultation turns",
}

var turnsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		session, _ := cmd.Flags().GetString("session")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryTurns(cmd.Context(), store.QueryOpts{Limit: limit, Session: session})
		if err != nil {
			return fmt.Errorf("query turns: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No turns recorded.")
			return nil
		}

		fmt.Printf("%-5s  %-19s  %-10s  %-10s  %-5s  %-7s  %s\n",
			"ID", "Timestamp", "Session", "Outcome", "Depth", "Ms", "Detail")
		fmt.Println(rule(90))
		for _, e := range events {
			fmt.Printf("%-5d  %-19s  %-10s  %-10s  %-5d  %-7d  %s\n",
				e.ID,
				e.Timestamp.Local().Format(timeLayout),
				truncate(e.SessionID, 10),
				e.Outcome,
				e.Depth,
				e.LatencyMs,
				turnDetail(e),
			)
		}
		return nil
	},
}

var turnsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count turns by outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		counts, err := s.EventRepo().TurnOutcomes(cmd.Context())
		if err != nil {
			return fmt.Errorf("query outcomes: %w", err)
		}
		if len(counts) == 0 {
			fmt.Println("No turns recorded.")
			return nil
		}

		total := 0
		for _, c := range counts {
			total += c.Count
		}
		fmt.Printf("%-12s  %8s  %6s\n", "Outcome", "Turns", "Share")
		fmt.Println(rule(32))
		for _, c := range counts {
			fmt.Printf("%-12s  %8d  %5.1f%%\n", c.Outcome, c.Count, 100*float64(c.Count)/float64(total))
		}
		fmt.Println(rule(32))
		fmt.Printf("%-12s  %8d\n", "TOTAL", total)
		return nil
	},
}

func turnDetail(e store.TurnEvent) string {
	switch {
	case e.ErrorMessage != "":
		return "error: " + e.ErrorMessage
	case e.Diagnosis != "":
		return fmt.Sprintf("%s (%.0f%%)", e.Diagnosis, e.Confidence*100)
	case e.AskedSymptom != "":
		return "asked " + e.AskedSymptom
	case len(e.Excluded) > 0:
		return "excluded " + strings.Join(e.Excluded, ", ")
	}
	return ""
}

func init() {
	turnsListCmd.Flags().IntP("limit", "n", 20, "Number of turns to show")
	turnsListCmd.Flags().StringP("session", "s", "", "Only turns of this session")

	turnsCmd.AddCommand(turnsListCmd)
	turnsCmd.AddCommand(turnsStatsCmd)
}
