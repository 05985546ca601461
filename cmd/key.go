package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sustech/latch/internal/credential"
	"github.com/sustech/latch/internal/llm"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored model API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Store an API key (reads stdin when no argument is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := keyFile()
		if err != nil {
			return err
		}

		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			fmt.Fprint(cmd.OutOrStdout(), "API key: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read key: %w", err)
			}
			key = line
		}

		if err := file.Set(strings.TrimSpace(key)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Key saved to %s\n", file.Path)
		return nil
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show which API key would be used (masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := llm.ConfigFromEnv()
		out := cmd.OutOrStdout()

		for _, name := range credential.EnvVarsFor(cfg.Provider) {
			if v := strings.TrimSpace(os.Getenv(name)); v != "" {
				fmt.Fprintf(out, "%s (from %s)\n", credential.Mask(v), name)
				return nil
			}
		}

		file, err := keyFile()
		if err != nil {
			return err
		}
		key, err := file.APIKey(cmd.Context())
		if err != nil {
			return err
		}
		if key == "" {
			fmt.Fprintln(out, "No API key configured. Set one with 'latch key set'.")
			return nil
		}
		fmt.Fprintf(out, "%s (from %s)\n", credential.Mask(key), file.Path)
		return nil
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := keyFile()
		if err != nil {
			return err
		}
		if err := file.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Stored key removed.")
		return nil
	},
}

func keyFile() (credential.FileSource, error) {
	path, err := credential.DefaultPath()
	if err != nil {
		return credential.FileSource{}, fmt.Errorf("resolve key file: %w", err)
	}
	if path == "" {
		return credential.FileSource{}, errors.New("no key file path")
	}
	return credential.FileSource{Path: path}, nil
}

func init() {
	keyCmd.AddCommand(keySetCmd)
	keyCmd.AddCommand(keyShowCmd)
	keyCmd.AddCommand(keyClearCmd)
}
