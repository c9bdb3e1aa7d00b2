package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fileledger/core/block"
	"fileledger/core/integrity"
	"fileledger/core/scan"
)

var errTampered = errors.New("file integrity compromised")

func newRegisterCmd(a *app) *cobra.Command {
	var uploader, action string
	cmd := &cobra.Command{
		Use:   "register <path>",
		Short: "Record a file's current digest on the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			b, err := a.svc.RegisterFile(args[0], uploader, action)
			if err != nil {
				return err
			}
			if err := a.chain.Save(a.store); err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(out, b)
			}
			fmt.Fprintf(out, "[✅] '%s' registered in block %d\n", args[0], b.Index())
			fmt.Fprintf(out, "    Hash: %s\n", b.Hash())
			return nil
		}),
	}
	cmd.Flags().StringVar(&uploader, "uploader", "", "uploader ID (default \"anonymous\")")
	cmd.Flags().StringVar(&action, "action", "", "action tag (default "+block.ActionFileRegistered+")")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <path>",
		Short: "Compare a file with its latest ledger record",
		Long:  "Compare a file with its latest ledger record. Exits non-zero when the file was modified.",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := args[0]
			r, err := a.svc.VerifyFile(path)
			if errors.Is(err, integrity.ErrNoRecord) && !a.jsonOutput() {
				fmt.Fprintf(out, "[⚠️] No blockchain record found for '%s'\n", path)
			}
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				if err := printJSON(out, r); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "[🔍] Verifying integrity of '%s'...\n", path)
				scan.WriteReport(out, r)
			}
			if !r.Verified() {
				return fmt.Errorf("%s: %w", path, errTampered)
			}
			return nil
		}),
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var uploader string
	cmd := &cobra.Command{
		Use:   "history [path]",
		Short: "List the ledger entries for a file or an uploader",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (uploader == "") {
				return errors.New("give either a path or --uploader")
			}
			out := cmd.OutOrStdout()
			var (
				subject string
				blocks  []*block.Block
			)
			if uploader != "" {
				subject, blocks = uploader, a.chain.HistoryForUploader(uploader)
			} else {
				subject, blocks = args[0], a.chain.HistoryForFile(args[0])
			}
			if a.jsonOutput() {
				return printJSON(out, blocks)
			}
			scan.WriteHistory(out, subject, blocks)
			return nil
		}),
	}
	cmd.Flags().StringVar(&uploader, "uploader", "", "list every registration by this uploader instead")
	return cmd
}
