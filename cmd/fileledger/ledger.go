package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fileledger/core/block"
	"fileledger/core/chain"
	"fileledger/core/scan"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [index]",
		Short: "Print the whole chain, or one block",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				blocks := a.chain.Blocks()
				if a.jsonOutput() {
					return printJSON(out, struct {
						Difficulty int            `json:"difficulty"`
						Blocks     []*block.Block `json:"blocks"`
					}{a.chain.Difficulty(), blocks})
				}
				scan.WriteChain(out, blocks)
				return nil
			}
			idx, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("index %q: must be a non-negative integer", args[0])
			}
			b, ok := a.chain.Block(idx)
			if !ok {
				return fmt.Errorf("block %d not found (chain has %d blocks)", idx, a.chain.Len())
			}
			if a.jsonOutput() {
				return printJSON(out, b)
			}
			scan.WriteBlock(out, b)
			return nil
		}),
	}
}

type validateResult struct {
	Valid  bool    `json:"valid"`
	Index  *uint64 `json:"index,omitempty"`
	Reason string  `json:"reason,omitempty"`
	Detail string  `json:"detail,omitempty"`
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every block's hash, link and proof-of-work",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			err := a.chain.Validate()
			var ve *chain.ValidationError
			if err != nil && !errors.As(err, &ve) {
				return err
			}
			if a.jsonOutput() {
				res := validateResult{Valid: err == nil}
				if ve != nil {
					idx := ve.Index
					res.Index, res.Reason, res.Detail = &idx, string(ve.Reason), ve.Error()
				}
				if perr := printJSON(out, res); perr != nil {
					return perr
				}
				return err
			}
			if err != nil {
				fmt.Fprintf(out, "[❌] Blockchain corrupted: %v\n", ve)
				return err
			}
			fmt.Fprintf(out, "[✅] Blockchain valid (%d blocks), no corruption found.\n", a.chain.Len())
			return nil
		}),
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize tracked files, uploaders and actions",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			st := a.chain.Statistics()
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), st)
			}
			scan.WriteStats(cmd.OutOrStdout(), st)
			return nil
		}),
	}
}
