package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yahya305/Daaktar-Saab/internal/llm"
	"github.com/Yahya305/Daaktar-Saab/internal/store"
)

const timeLayout = "2006-01-02 15:04:05"

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect the language model calls made during consultations",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent model calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := llmQueryOpts(cmd)
		if err != nil {
			return err
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		calls, err := s.EventRepo().QueryLLMEvents(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("query model calls: %w", err)
		}
		if len(calls) == 0 {
			fmt.Println("No model calls recorded.")
			return nil
		}

		fmt.Printf("%-5s  %-19s  %-10s  %-10s  %-24s  %6s  %6s  %7s  %s\n",
			"ID", "Timestamp", "Purpose", "Session", "Model", "In", "Out", "Ms", "OK")
		fmt.Println(rule(104))
		for _, c := range calls {
			fmt.Printf("%-5d  %-19s  %-10s  %-10s  %-24s  %6d  %6d  %7d  %s\n",
				c.ID,
				c.Timestamp.Local().Format(timeLayout),
				c.Purpose,
				truncate(c.SessionID, 10),
				truncate(c.Model, 24),
				c.InputTokens,
				c.OutputTokens,
				c.LatencyMs,
				mark(c.Success),
			)
		}
		return nil
	},
}

// llmQueryOpts reads the list filters.
func llmQueryOpts(cmd *cobra.Command) (store.QueryOpts, error) {
	limit, _ := cmd.Flags().GetInt("limit")
	purpose, _ := cmd.Flags().GetString("purpose")
	session, _ := cmd.Flags().GetString("session")
	since, _ := cmd.Flags().GetDuration("since")
	if since < 0 {
		return store.QueryOpts{}, fmt.Errorf("--since must be positive, got %s", since)
	}

	opts := store.QueryOpts{Limit: limit, Purpose: purpose, Session: session}
	if since > 0 {
		opts.From = time.Now().Add(-since)
	}
	return opts, nil
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the prompt and reply of one model call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		c, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get model call: %w", err)
		}
		if c == nil {
			return fmt.Errorf("model call %d not found", id)
		}
		printLLMCall(c)
		return nil
	},
}

func printLLMCall(c *store.LLMEvent) {
	field := func(name, value string) {
		if value != "" {
			fmt.Printf("%-10s %s\n", name+":", value)
		}
	}
	field("ID", strconv.Itoa(c.ID))
	field("Time", c.Timestamp.Local().Format(timeLayout))
	field("Provider", c.Provider)
	field("Model", c.Model)
	field("Purpose", c.Purpose)
	field("Session", c.SessionID)
	field("Tokens", fmt.Sprintf("%d in / %d out", c.InputTokens, c.OutputTokens))
	field("Latency", fmt.Sprintf("%dms", c.LatencyMs))
	if cost := llm.LookupCost(c.Model); cost != nil {
		field("Cost", formatCost(cost.Cost(c.InputTokens, c.OutputTokens)))
	}
	field("Success", strconv.FormatBool(c.Success))
	field("Error", c.ErrorMessage)

	for _, part := range []struct{ title, body string }{
		{"PROMPT", c.RequestBody},
		{"REPLY", c.ResponseBody},
	} {
		fmt.Printf("\n%s\n%s\n%s\n", rule(60), part.title, rule(60))
		if part.body == "" {
			fmt.Println("(not captured)")
			continue
		}
		fmt.Println(part.body)
	}
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		byPurpose, err := s.EventRepo().LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("usage by purpose: %w", err)
		}
		if len(byPurpose) == 0 {
			fmt.Println("No model calls recorded.")
			return nil
		}
		byModel, err := s.EventRepo().LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("usage by model: %w", err)
		}

		printPurposeUsage(byPurpose)
		fmt.Println()
		printModelCost(byModel)
		return nil
	},
}

func printPurposeUsage(rows []store.PurposeUsage) {
	fmt.Println("Tokens by purpose")
	fmt.Printf("%-12s  %6s  %10s  %10s  %8s\n", "Purpose", "Calls", "Input", "Output", "Avg Ms")
	fmt.Println(rule(54))

	var calls, in, out int
	for _, r := range rows {
		fmt.Printf("%-12s  %6d  %10d  %10d  %8d\n", r.Purpose, r.Calls, r.InputTokens, r.OutputTokens, r.AvgLatencyMs)
		calls += r.Calls
		in += r.InputTokens
		out += r.OutputTokens
	}
	fmt.Println(rule(54))
	fmt.Printf("%-12s  %6d  %10d  %10d\n", "TOTAL", calls, in, out)
}

func printModelCost(rows []store.ModelUsage) {
	fmt.Println("Estimated cost (USD)")
	fmt.Printf("%-28s  %6s  %10s  %10s\n", "Model", "Calls", "Per call", "Cost")
	fmt.Println(rule(60))

	var total float64
	var unpriced []string
	for _, r := range rows {
		price := llm.LookupCost(r.Model)
		if price == nil {
			unpriced = append(unpriced, r.Model)
			fmt.Printf("%-28s  %6d  %10s  %10s\n", truncate(r.Model, 28), r.Calls, "?", "?")
			continue
		}
		cost := price.Cost(r.InputTokens, r.OutputTokens)
		total += cost
		perCall := 0.0
		if r.Calls > 0 {
			perCall = cost / float64(r.Calls)
		}
		fmt.Printf("%-28s  %6d  %10s  %10s\n", truncate(r.Model, 28), r.Calls, formatCost(perCall), formatCost(cost))
	}
	fmt.Println(rule(60))

	label := "TOTAL"
	if len(unpriced) > 0 {
		label = "TOTAL (priced models only)"
	}
	fmt.Printf("%-48s  %10s\n", label, formatCost(total))
	if len(unpriced) > 0 {
		fmt.Printf("\nNo pricing for: %s\n", strings.Join(unpriced, ", "))
	}
}

func rule(width int) string {
	return strings.Repeat("─", width)
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of calls to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Only calls for this purpose (question, treatment, enrich)")
	llmListCmd.Flags().StringP("session", "s", "", "Only calls made for this consultation")
	llmListCmd.Flags().Duration("since", 0, "Only calls newer than this, e.g. 2h")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
