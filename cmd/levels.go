package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sustech/latch/internal/dialog"
	"github.com/sustech/latch/internal/ui/theme"
)

var levelsCmd = &cobra.Command{
	Use:   "levels [id]",
	Short: "List levels, or show one level's code and goals",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadLevels(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			fmt.Fprintf(out, "%-10s  %-24s  %5s\n", "ID", "Title", "Goals")
			fmt.Fprintln(out, strings.Repeat("─", 44))
			for _, l := range reg.All() {
				fmt.Fprintf(out, "%-10s  %-24s  %5d\n", l.ID, truncate(l.Title, 24), len(l.Goals))
			}
			return nil
		}

		l, ok := reg.Lookup(args[0])
		if !ok {
			return fmt.Errorf("level %q not found (available: %s)", args[0], strings.Join(reg.IDs(), ", "))
		}

		fmt.Fprintln(out, theme.Title.Render(l.Title))
		if l.Scenario != "" {
			fmt.Fprintln(out, theme.Subtitle.Render(l.Scenario))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, dialog.FormatOpening(l))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Goals:")
		for _, g := range l.Goals {
			fmt.Fprintf(out, "  %s  %s\n", theme.Check(false, g.Label), theme.Hint.Render(g.ID))
		}
		return nil
	},
}
