package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sustech/latch/internal/credential"
	"github.com/sustech/latch/internal/dialog"
	"github.com/sustech/latch/internal/judge"
	"github.com/sustech/latch/internal/llm"
	"github.com/sustech/latch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reply and evaluate endpoints over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		reg, err := loadLevels(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		// A key sent with the request wins over the server's own.
		cfg := llm.ConfigFromEnv()
		local, _, err := credential.Default(cfg.Provider)
		if err != nil {
			return fmt.Errorf("resolve key file: %w", err)
		}
		keys := credential.Chain{credential.ContextSource{}, local}

		provider, err := buildProvider(cfg, keys, st.EventRepo())
		if err != nil {
			return err
		}

		srv := server.New(
			dialog.NewDriver(provider, reg, dialogConfig(cfg)),
			judge.NewEvaluator(provider, reg, judge.DefaultConfig()),
			reg,
			st.SessionRepo(),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
}
