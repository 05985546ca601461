package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sustech/latch/internal/credential"
	"github.com/sustech/latch/internal/dialog"
	"github.com/sustech/latch/internal/levels"
	"github.com/sustech/latch/internal/llm"
	"github.com/sustech/latch/internal/logging"
	"github.com/sustech/latch/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "latch",
	Short: "Argue hardware design with a stubborn AI colleague",
	Long: "Latch is a Verilog debate game. Each level puts you across the table from a\n" +
		"colleague with a bad idea; convince them with the right concepts to win.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := logging.DefaultConfig()
		if cmd.Name() == serveCmd.Name() {
			cfg = logging.ServerConfig()
		}
		if v, _ := cmd.Flags().GetString("log-level"); v != "" {
			cfg.Level = v
		}
		if v, _ := cmd.Flags().GetString("log-format"); v != "" {
			cfg.Format = v
		}
		logging.Init(cfg)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides LATCH_DB env var)")
	rootCmd.PersistentFlags().String("levels", "", "Path to a levels YAML file (overrides LATCH_LEVELS_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console or json")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then LATCH_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

func loadLevels(cmd *cobra.Command) (*levels.Registry, error) {
	path, _ := cmd.Flags().GetString("levels")
	return levels.Resolve(path)
}

// buildProvider wires the configured model behind the credential source.
// Keys are looked up on every call, never at startup.
func buildProvider(cfg llm.Config, keys credential.Source, events store.EventRepo) (llm.Provider, error) {
	p, err := llm.NewProvider(cfg, keys, events)
	if err != nil {
		return nil, fmt.Errorf("configure %s provider: %w", cfg.Provider, err)
	}
	return p, nil
}

// dialogConfig applies the provider config's reply retry policy.
func dialogConfig(cfg llm.Config) dialog.Config {
	dc := dialog.DefaultConfig()
	dc.Retry = cfg.Retry
	return dc
}
