// Package credential resolves the model API key at call time.
//
// Keys are never cached: every Source reads its backing store on each call,
// so a key set, rotated or cleared while the process runs is honored by the
// very next request.
package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Source yields the API key to use for one request. An empty key with a nil
// error means no key is available.
type Source interface {
	APIKey(ctx context.Context) (string, error)
}

// EnvSource returns the first non-empty value among Vars.
type EnvSource struct {
	Vars []string
}

func (s EnvSource) APIKey(context.Context) (string, error) {
	for _, v := range s.Vars {
		if key := strings.TrimSpace(os.Getenv(v)); key != "" {
			return key, nil
		}
	}
	return "", nil
}

// EnvVarsFor lists the environment variables consulted for a provider.
// LATCH_API_KEY comes first and always wins.
func EnvVarsFor(provider string) []string {
	vars := []string{"LATCH_API_KEY"}
	switch provider {
	case "gemini":
		vars = append(vars, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	case "openai":
		vars = append(vars, "OPENAI_API_KEY")
	case "anthropic":
		vars = append(vars, "ANTHROPIC_API_KEY")
	case "openrouter":
		vars = append(vars, "OPENROUTER_API_KEY")
	}
	return vars
}

// FileSource stores the key in a single file, the terminal counterpart of
// the browser's latch_api_key local-storage entry.
type FileSource struct {
	Path string
}

// APIKey reads the key file. A missing file means no key.
func (s FileSource) APIKey(context.Context) (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read key file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Set writes key to the file with owner-only permissions.
func (s FileSource) Set(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(s.Path, 0o600); err != nil {
		return fmt.Errorf("chmod key file: %w", err)
	}
	return nil
}

// Clear removes the key file. Clearing an absent key is not an error.
func (s FileSource) Clear() error {
	err := os.Remove(s.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove key file: %w", err)
	}
	return nil
}

type contextKey struct{}

// WithKey attaches a request-scoped key to ctx.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, contextKey{}, strings.TrimSpace(key))
}

// ContextSource yields the key attached with WithKey, used for keys that
// arrive with an HTTP request.
type ContextSource struct{}

func (ContextSource) APIKey(ctx context.Context) (string, error) {
	key, _ := ctx.Value(contextKey{}).(string)
	return key, nil
}

// Chain returns the first non-empty key from its sources. A source error
// stops the chain.
type Chain []Source

func (c Chain) APIKey(ctx context.Context) (string, error) {
	for _, s := range c {
		key, err := s.APIKey(ctx)
		if err != nil {
			return "", err
		}
		if key != "" {
			return key, nil
		}
	}
	return "", nil
}

// DefaultPath resolves the key file path in priority order:
// 1. LATCH_KEY_FILE environment variable
// 2. $XDG_CONFIG_HOME/latch/api_key
// 3. ~/.config/latch/api_key
func DefaultPath() (string, error) {
	if p := os.Getenv("LATCH_KEY_FILE"); p != "" {
		return p, nil
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "latch", "api_key"), nil
}

// Default builds the source used by the CLI: environment first, then the
// key file.
func Default(provider string) (Source, FileSource, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, FileSource{}, err
	}
	file := FileSource{Path: path}
	return Chain{EnvSource{Vars: EnvVarsFor(provider)}, file}, file, nil
}

// Mask hides all but the last four characters of key.
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
