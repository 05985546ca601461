package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sustech/latch/internal/credential"
	"github.com/sustech/latch/internal/dialog"
	"github.com/sustech/latch/internal/game"
	"github.com/sustech/latch/internal/judge"
	"github.com/sustech/latch/internal/llm"
	"github.com/sustech/latch/internal/ui/theme"
)

var playCmd = &cobra.Command{
	Use:   "play <level-id>",
	Short: "Start arguing with a level's persona",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		resumeID, _ := cmd.Flags().GetString("resume")
		if len(args) == 0 && resumeID == "" {
			return errors.New("give a level ID (see 'latch levels') or --resume <session-id>")
		}

		reg, err := loadLevels(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		cfg := llm.ConfigFromEnv()
		keys, _, err := credential.Default(cfg.Provider)
		if err != nil {
			return fmt.Errorf("resolve key file: %w", err)
		}
		provider, err := buildProvider(cfg, keys, st.EventRepo())
		if err != nil {
			return err
		}

		svc := game.NewService(
			dialog.NewDriver(provider, reg, dialogConfig(cfg)),
			judge.NewEvaluator(provider, reg, judge.DefaultConfig()),
			reg,
			st.SessionRepo(),
		)

		var sess *game.Session
		if resumeID != "" {
			sess, err = svc.Resume(ctx, resumeID)
			if err != nil {
				return err
			}
			if sess == nil {
				return fmt.Errorf("session %q not found", resumeID)
			}
		} else {
			sess, err = svc.Start(ctx, args[0])
			if errors.Is(err, game.ErrUnknownLevel) {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(reg.IDs(), ", "))
			}
			if err != nil {
				return err
			}
		}

		return runREPL(cmd, svc, sess, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	playCmd.Flags().String("resume", "", "Continue a stored session by ID")
}

// runREPL reads player lines until /quit, EOF or a won level.
func runREPL(cmd *cobra.Command, svc *game.Service, sess *game.Session, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()

	fmt.Fprintln(out, theme.Title.Render(sess.Level.Title))
	if sess.Level.Scenario != "" {
		fmt.Fprintln(out, theme.Subtitle.Render(sess.Level.Scenario))
	}
	fmt.Fprintln(out)
	for _, m := range sess.Transcript {
		printMessage(out, m.Role, m.Content)
	}
	printChecklist(out, sess)

	if sess.Complete {
		fmt.Fprintln(out, theme.Banner.Render("This level is already won."))
		return nil
	}
	fmt.Fprintln(out, theme.Hint.Render("Type your argument. /goals shows progress, /quit leaves."))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, theme.Student.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			if sess.ID != "" {
				fmt.Fprintln(out, theme.Hint.Render("Resume later with: latch play --resume "+sess.ID))
			}
			return nil
		case "/goals":
			printChecklist(out, sess)
			continue
		}

		fmt.Fprintln(out, theme.Hint.Render("..."))
		turn, err := svc.Send(ctx, sess, line)
		if err != nil {
			return err
		}

		printMessage(out, llm.RoleAssistant, turn.Reply)
		for _, id := range turn.NewGoals {
			label := id
			if g, ok := sess.Level.Goal(id); ok {
				label = g.Label
			}
			fmt.Fprintln(out, theme.GoalDone.Render("Goal reached: "+label))
		}
		printChecklist(out, sess)

		if turn.Completed {
			fmt.Fprintln(out, theme.Banner.Render("Level complete! Your colleague is convinced."))
			return nil
		}
	}
}

func printMessage(out io.Writer, role llm.Role, content string) {
	switch {
	case role == llm.RoleUser:
		fmt.Fprintln(out, theme.Student.Render("you> ")+content)
	case dialog.IsSystemError(content):
		fmt.Fprintln(out, theme.SystemError.Render(content))
	default:
		fmt.Fprintln(out, theme.Persona.Render("colleague> ")+content)
	}
	fmt.Fprintln(out)
}

func printChecklist(out io.Writer, sess *game.Session) {
	if len(sess.Level.Goals) == 0 {
		return
	}
	lines := make([]string, 0, len(sess.Level.Goals))
	for _, g := range sess.Level.Goals {
		lines = append(lines, theme.Check(sess.Satisfied.Has(g.ID), g.Label))
	}
	fmt.Fprintln(out, theme.Card.Render(strings.Join(lines, "\n")))
}
