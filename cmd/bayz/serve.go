package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cbegin/bayz-go/internal/score"
	"github.com/cbegin/bayz-go/internal/server"
)

var serveCycle float64

func init() {
	addServerFlags(serveCmd.Flags())
	serveCmd.Flags().Float64Var(&serveCycle, "cycle", score.DefaultCycleLength, "initial cycle length in seconds")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the compose server",
	Long: `Run the compose server. Frontends stage lines with POST /lines and
publish them with POST /commit (or after the auto-commit quiet period);
players poll GET /.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		srv := server.New(
			server.WithLogger(slog.Default()),
			server.WithAutoCommit(cfg.AutoCommit()),
			server.WithCycleLength(serveCycle),
		)
		return srv.ListenAndServe(ctx, cfg.ListenAddr)
	},
}
