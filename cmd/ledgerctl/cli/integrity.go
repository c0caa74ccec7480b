package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/integrity"
)

// IntegrityScanner runs one ledger integrity scan.
type IntegrityScanner interface {
	Run(ctx context.Context, grace time.Duration) (integrity.Report, error)
}

// IntegrityOptions configures the integrity check command.
type IntegrityOptions struct {
	IO
	Grace      time.Duration
	JSONOutput bool
}

// IntegrityCheck runs the scan in the foreground. Exit code 10 signals
// findings.
func IntegrityCheck(ctx context.Context, scanner IntegrityScanner, opts IntegrityOptions) int {
	opts.defaults()
	report, err := scanner.Run(ctx, opts.Grace)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "integrity check: %v\n", err)
		return ExitFailure
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(report); err != nil {
			fmt.Fprintf(opts.Stderr, "integrity check: %v\n", err)
			return ExitFailure
		}
	} else {
		out := opts.Stdout
		fmt.Fprintf(out, "Ledger integrity at %s: %d imbalance(s), %d stuck event(s)\n",
			report.CheckedAt.Format(time.RFC3339), len(report.Imbalances), len(report.StuckEvents))
		for _, im := range report.Imbalances {
			fmt.Fprintf(out, " ! entry %s (%s %s) lines=%d debit=%s credit=%s\n",
				im.EntryID, im.CompanyID, im.SourceDocumentID, im.Lines, im.Debit.StringFixed(2), im.Credit.StringFixed(2))
		}
		for _, ev := range report.StuckEvents {
			fmt.Fprintf(out, " ? event %s %s %s: %s\n", ev.EventID, ev.EventType, ev.SourceDocumentID, ev.PostError)
		}
	}
	if !report.Clean() {
		return ExitRejected
	}
	return ExitOK
}
