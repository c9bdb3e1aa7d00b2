package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"fileledger/core/audit"
	"fileledger/core/chain"
	"fileledger/core/config"
	"fileledger/core/integrity"
	"fileledger/core/metrics"
	"fileledger/core/storage"
)

const (
	outputPlain = "plain"
	outputJSON  = "json"
)

// app carries what the root command resolves for its subcommands.
type app struct {
	envFile string
	output  string

	cfg *config.Config
	log *slog.Logger

	reg   *prometheus.Registry
	store storage.Store
	chain *chain.Chain
	svc   *integrity.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "fileledger",
		Short:         "File integrity ledger",
		Long:          "Register files on a proof-of-work hash chain and detect later modification.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.StringVarP(&a.output, "output", "o", outputPlain, "output format: plain or json")
	config.RegisterFlags(pf)

	root.AddCommand(
		newRegisterCmd(a),
		newVerifyCmd(a),
		newHistoryCmd(a),
		newShowCmd(a),
		newValidateCmd(a),
		newStatsCmd(a),
		newDemoCmd(a),
		newServeCmd(a),
		newNodeCmd(a),
	)
	return root
}

func (a *app) configure(cmd *cobra.Command) error {
	switch a.output {
	case outputPlain, outputJSON:
	default:
		return fmt.Errorf("--output: invalid value %q, expected %s or %s", a.output, outputPlain, outputJSON)
	}
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = config.SetupLogger(cfg, cmd.ErrOrStderr())
	return nil
}

// openLedger opens the configured store and loads the chain, creating and
// saving a genesis-only chain when nothing usable is stored.
func (a *app) openLedger() error {
	c, err := storage.CipherFromBase64(a.cfg.DEK)
	if err != nil {
		return err
	}
	store, err := storage.Open(a.cfg.Store, a.cfg.DataFile, a.cfg.DBPath, c)
	if err != nil {
		return err
	}

	a.reg = prometheus.NewRegistry()
	m := metrics.New(a.reg)
	sinks := audit.Multi{audit.NewSlogAuditLogger(a.log)}
	if a.cfg.AuditLog != "" {
		sinks = append(sinks, audit.NewFileAuditLogger(a.cfg.AuditLog, a.log))
	}

	ch, loaded, err := chain.LoadOrCreate(store, chain.Options{
		Difficulty: a.cfg.Difficulty,
		MaxNonce:   a.cfg.MaxNonce,
		Logger:     a.log,
		Metrics:    m,
		Audit:      sinks,
	})
	if err != nil {
		store.Close()
		return err
	}
	if !loaded {
		a.log.Info("genesis block created", slog.String("store", a.cfg.Store))
		if err := ch.Save(store); err != nil {
			store.Close()
			return err
		}
	}

	a.store = store
	a.chain = ch
	a.svc = integrity.NewService(ch,
		integrity.WithLogger(a.log),
		integrity.WithAudit(sinks),
		integrity.WithMetrics(m),
	)
	return nil
}

func (a *app) closeLedger() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", slog.String("error", err.Error()))
	}
	a.store = nil
}

// withLedger wraps a RunE so the chain is open for its duration.
func (a *app) withLedger(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.openLedger(); err != nil {
			return err
		}
		defer a.closeLedger()
		return run(cmd, args)
	}
}

func (a *app) jsonOutput() bool { return a.output == outputJSON }

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
