package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fileledger/core/block"
	"fileledger/core/integrity"
	"fileledger/core/scan"
)

const (
	demoUploader = "demo_user"
	demoTamper   = "\n\n-- UNAUTHORIZED ADDITION --\nSecret data injected!"
)

func newDemoCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through register, tamper, detect and re-register on a sample file",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			if err := runDemo(cmd.OutOrStdout(), a.svc, file); err != nil {
				return err
			}
			return a.chain.Save(a.store)
		}),
	}
	cmd.Flags().StringVar(&file, "file", "important_document.txt", "demo file to create and tamper with")
	return cmd
}

func phase(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", 60))
}

// runDemo drives the eight demo phases against svc. An unexpected verdict
// at any phase ends the run with an error.
func runDemo(w io.Writer, svc *integrity.Service, path string) error {
	banner := strings.Repeat("=", 60)
	fmt.Fprintf(w, "%s\nSTARTING DEMO SIMULATION\n%s\n", banner, banner)

	phase(w, "📝 PHASE 1: Creating and registering original file")
	content := "This is the original, secure data.\nNo unauthorized changes allowed!\nTimestamp: " +
		time.Now().Format(time.RFC3339Nano)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("create demo file: %w", err)
	}
	fmt.Fprintf(w, "[📄] Demo file created: '%s'\n", path)
	if err := demoRegister(w, svc, path, block.ActionFileCreated); err != nil {
		return err
	}

	phase(w, "🔍 PHASE 2: Verification BEFORE Tampering")
	if err := demoVerify(w, svc, path, integrity.Verified); err != nil {
		return err
	}

	phase(w, "⚠️ PHASE 3: Simulating Unauthorized Modification")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open demo file: %w", err)
	}
	_, err = f.WriteString(demoTamper)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("modify demo file: %w", err)
	}
	fmt.Fprintf(w, "[✏️] '%s' modified\n", path)
	fmt.Fprintln(w, "[!] Note: The modified file has NOT been re-registered in the blockchain")

	phase(w, "🔍 PHASE 4: Verification AFTER Tampering")
	if err := demoVerify(w, svc, path, integrity.Tampered); err != nil {
		return err
	}

	phase(w, "📝 PHASE 5: Registering the modified file (proper procedure)")
	if err := demoRegister(w, svc, path, block.ActionFileModified); err != nil {
		return err
	}

	phase(w, "🔍 PHASE 6: Verification after proper registration")
	if err := demoVerify(w, svc, path, integrity.Verified); err != nil {
		return err
	}

	phase(w, "📜 PHASE 7: Displaying complete file history")
	scan.WriteHistory(w, path, svc.Chain().HistoryForFile(path))

	phase(w, "🔒 PHASE 8: Blockchain Validation")
	if err := svc.Chain().Validate(); err != nil {
		fmt.Fprintf(w, "[❌] Blockchain corrupted: %v\n", err)
		return err
	}
	fmt.Fprintf(w, "[✅] Blockchain valid (%d blocks), no corruption found.\n", svc.Chain().Len())

	fmt.Fprintln(w, "\n✅ Demo simulation completed!")
	return nil
}

func demoRegister(w io.Writer, svc *integrity.Service, path, action string) error {
	b, err := svc.RegisterFile(path, demoUploader, action)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "[✅] '%s' registered in block %d (%s)\n", path, b.Index(), action)
	return nil
}

func demoVerify(w io.Writer, svc *integrity.Service, path string, want integrity.Status) error {
	r, err := svc.VerifyFile(path)
	if err != nil {
		return err
	}
	scan.WriteReport(w, r)
	if r.Status != want {
		return fmt.Errorf("demo: expected %s verdict for '%s', got %s", want, path, r.Status)
	}
	return nil
}

