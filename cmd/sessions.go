package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sustech/latch/internal/llm"
	"github.com/sustech/latch/internal/store"
	"github.com/sustech/latch/internal/ui/theme"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored play sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		level, _ := cmd.Flags().GetString("level")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		sums, err := s.SessionRepo().ListSessions(cmd.Context(), store.QueryOpts{Limit: limit, LevelID: level})
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(sums) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}

		fmt.Fprintf(out, "%-36s  %-10s  %-19s  %5s  %5s  %s\n",
			"ID", "Level", "Started", "Msgs", "Goals", "Won")
		fmt.Fprintln(out, strings.Repeat("─", 90))
		for _, ss := range sums {
			won := ""
			if ss.CompletedAt != nil {
				won = "✓"
			}
			fmt.Fprintf(out, "%-36s  %-10s  %-19s  %5d  %5d  %s\n",
				ss.ID,
				truncate(ss.LevelID, 10),
				ss.StartedAt.Local().Format("2006-01-02 15:04:05"),
				ss.MessageCount,
				ss.GoalCount,
				won,
			)
		}
		return nil
	},
}

var sessionsViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show a session's transcript and goals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := s.SessionRepo().GetSession(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("session %q not found", args[0])
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:        %s\n", rec.ID)
		fmt.Fprintf(out, "Level:     %s\n", rec.LevelID)
		fmt.Fprintf(out, "Started:   %s\n", rec.StartedAt.Local().Format("2006-01-02 15:04:05"))
		if rec.CompletedAt != nil {
			fmt.Fprintf(out, "Won:       %s\n", rec.CompletedAt.Local().Format("2006-01-02 15:04:05"))
		}
		if len(rec.GoalIDs) > 0 {
			fmt.Fprintf(out, "Goals:     %s\n", strings.Join(rec.GoalIDs, ", "))
		}
		fmt.Fprintln(out, theme.Hint.Render(strings.Repeat("─", 60)))

		for _, m := range rec.Messages {
			printMessage(out, llm.ParseRole(m.Role), m.Content)
		}
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().IntP("limit", "n", 20, "Number of sessions to show")
	sessionsListCmd.Flags().StringP("level", "l", "", "Filter by level ID")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsViewCmd)
}
