package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"fileledger/api/server"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				a.cfg.ListenAddr = listen
			}
			a.reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			srv, err := server.NewServer(server.Options{
				Service:         a.svc,
				Store:           a.store,
				Logger:          a.log,
				Registry:        a.reg,
				JWTSecret:       a.cfg.JWTSecret,
				UploadDir:       a.cfg.UploadDir,
				ListenAddr:      a.cfg.ListenAddr,
				ShutdownTimeout: a.cfg.ShutdownTimeout,
				RateLimit:       a.cfg.RateLimit,
			})
			if err != nil {
				return err
			}
			if a.cfg.JWTSecret == "" {
				a.log.Warn("FILELEDGER_JWT_SECRET not set, ledger routes are unauthenticated")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := srv.Run(ctx); err != nil {
				return err
			}
			return a.chain.Save(a.store)
		}),
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides FILELEDGER_LISTEN_ADDR)")
	return cmd
}
