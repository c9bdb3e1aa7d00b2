package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fileledger/api/client"
)

func newNodeCmd(a *app) *cobra.Command {
	var addr, token string
	newClient := func() *client.Client {
		return client.New(addr, client.WithToken(token))
	}

	node := &cobra.Command{
		Use:   "node",
		Short: "Query a running ledger node",
	}
	node.PersistentFlags().StringVar(&addr, "addr", client.DefaultAddr, "node base URL")
	node.PersistentFlags().StringVar(&token, "token", os.Getenv("FILELEDGER_TOKEN"), "bearer token for authenticated routes")

	health := &cobra.Command{
		Use:   "health",
		Short: "Query node health summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newClient().Health(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.jsonOutput() {
				return printJSON(out, h)
			}
			fmt.Fprintf(out, "Node Health: %s\n", h.Status)
			fmt.Fprintf(out, "Uptime: %ds\n", h.Metrics.UptimeSeconds)
			fmt.Fprintf(out, "Block Height: %d\n", h.Metrics.BlockHeight)
			fmt.Fprintf(out, "Files Tracked: %d\n", h.Metrics.FilesTracked)
			fmt.Fprintf(out, "Difficulty: %d\n", h.Metrics.Difficulty)
			fmt.Fprintf(out, "CPU Load: %.2f%%\n", h.Metrics.CPULoadPercent)
			fmt.Fprintf(out, "Memory Usage: %.2f MB\n", h.Metrics.MemoryMB)
			fmt.Fprintf(out, "Disk Free: %.2f MB\n", h.Metrics.DiskFreeMB)
			fmt.Fprintf(out, "Last Block Time: %s\n", h.Metrics.LastBlockTime)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show node version and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newClient().Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.jsonOutput() {
				return printJSON(out, st)
			}
			fmt.Fprintf(out, "Status: %s\n", st.Status)
			fmt.Fprintf(out, "Version: %s (API %s)\n", st.Version, st.APIVersion)
			fmt.Fprintf(out, "Block Height: %d\n", st.BlockHeight)
			fmt.Fprintf(out, "Auth Enabled: %v\n", st.AuthEnabled)
			return nil
		},
	}

	liveness := &cobra.Command{
		Use:   "liveness",
		Short: "Check node liveness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			alive, err := newClient().Liveness(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Liveness: %v\n", alive)
			return nil
		},
	}

	readiness := &cobra.Command{
		Use:   "readiness",
		Short: "Check node readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ready, err := newClient().Readiness(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Readiness: %v\n", ready)
			return nil
		},
	}

	node.AddCommand(health, status, liveness, readiness)
	return node
}
