package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx"
)

// RateImporter persists externally sourced snapshots.
type RateImporter interface {
	Import(ctx context.Context, snap fx.Snapshot) (fx.Snapshot, error)
}

// FXImportOptions configures the fx import command.
type FXImportOptions struct {
	IO
	Source       string
	SourceReader io.Reader
	Mode         Mode
	JSONOutput   bool
}

// FXImportRow is one accepted rate.
type FXImportRow struct {
	Currency string          `json:"currency"`
	Date     string          `json:"date"`
	Rate     decimal.Decimal `json:"rate"`
	Source   fx.Source       `json:"source"`
}

// FXImportRejection is a CSV line that failed validation.
type FXImportRejection struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// FXImportSummary captures the structured reporting outcome.
type FXImportSummary struct {
	Mode     Mode                `json:"mode"`
	Accepted []FXImportRow       `json:"accepted"`
	Rejected []FXImportRejection `json:"rejected"`
	Applied  int                 `json:"applied"`
}

// FXImport reads a CSV of manual rates (currency,date,rate[,source]) and
// stores them through importer in apply mode. Dry mode exits 10 when any
// line was rejected.
func FXImport(ctx context.Context, importer RateImporter, opts FXImportOptions) int {
	opts.defaults()
	mode, err := parseMode(opts.Mode)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx import: %v\n", err)
		return ExitFailure
	}
	data, err := readSource(opts.Source, opts.SourceReader, opts.Stdin)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx import: %v\n", err)
		return ExitFailure
	}
	summary, err := parseRates(data)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx import: %v\n", err)
		return ExitFailure
	}
	summary.Mode = mode

	if mode == ModeDry || len(summary.Accepted) == 0 {
		if err := writeFXSummary(opts, summary); err != nil {
			fmt.Fprintf(opts.Stderr, "fx import: %v\n", err)
			return ExitFailure
		}
		if len(summary.Rejected) > 0 {
			return ExitRejected
		}
		return ExitOK
	}
	if len(summary.Rejected) > 0 {
		fmt.Fprintf(opts.Stderr, "fx import: %d line(s) rejected, fix the source before applying\n", len(summary.Rejected))
		_ = writeFXSummary(opts, summary)
		return ExitRejected
	}

	ok, err := opts.Confirm(fmt.Sprintf("Import %d FX rate(s)?", len(summary.Accepted)), opts.Stdin, opts.Stdout)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx import: confirmation failed: %v\n", err)
		return ExitFailure
	}
	if !ok {
		fmt.Fprintln(opts.Stderr, "fx import: cancelled by user")
		return ExitFailure
	}
	for _, row := range summary.Accepted {
		date, _ := time.Parse(time.DateOnly, row.Date)
		if _, err := importer.Import(ctx, fx.Snapshot{From: row.Currency, Date: date, Rate: row.Rate, Source: row.Source}); err != nil {
			fmt.Fprintf(opts.Stderr, "fx import: %s %s: %v\n", row.Currency, row.Date, err)
			_ = writeFXSummary(opts, summary)
			return ExitFailure
		}
		summary.Applied++
	}
	if err := writeFXSummary(opts, summary); err != nil {
		fmt.Fprintf(opts.Stderr, "fx import: %v\n", err)
		return ExitFailure
	}
	return ExitOK
}

func parseRates(data []byte) (FXImportSummary, error) {
	summary := FXImportSummary{Accepted: []FXImportRow{}, Rejected: []FXImportRejection{}}
	if len(data) == 0 {
		return summary, nil
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return summary, nil
		}
		return summary, err
	}
	idx := map[string]int{"currency": -1, "date": -1, "rate": -1, "source": -1}
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		if _, ok := idx[name]; ok {
			idx[name] = i
		}
	}
	if idx["currency"] < 0 || idx["date"] < 0 || idx["rate"] < 0 {
		return summary, errors.New("missing required columns in source (need currency, date, rate)")
	}

	seen := map[string]int{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}
		line, _ := reader.FieldPos(0)
		row, reason := parseRateRecord(record, idx)
		if reason != "" {
			summary.Rejected = append(summary.Rejected, FXImportRejection{Line: line, Reason: reason})
			continue
		}
		key := row.Currency + "|" + row.Date
		if first, dup := seen[key]; dup {
			summary.Rejected = append(summary.Rejected, FXImportRejection{Line: line, Reason: fmt.Sprintf("duplicate of line %d", first)})
			continue
		}
		seen[key] = line
		summary.Accepted = append(summary.Accepted, row)
	}
	sort.SliceStable(summary.Accepted, func(i, j int) bool {
		if summary.Accepted[i].Currency != summary.Accepted[j].Currency {
			return summary.Accepted[i].Currency < summary.Accepted[j].Currency
		}
		return summary.Accepted[i].Date < summary.Accepted[j].Date
	})
	return summary, nil
}

func parseRateRecord(record []string, idx map[string]int) (FXImportRow, string) {
	field := func(name string) string {
		i := idx[name]
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	code, err := fx.NormalizeCurrency(field("currency"))
	if err != nil {
		return FXImportRow{}, err.Error()
	}
	if code == fx.BaseCurrency {
		return FXImportRow{}, fx.BaseCurrency + " rate is fixed at 1"
	}
	date, err := time.Parse(time.DateOnly, field("date"))
	if err != nil {
		return FXImportRow{}, fmt.Sprintf("invalid date %q", field("date"))
	}
	rate, err := decimal.NewFromString(field("rate"))
	if err != nil || !rate.IsPositive() {
		return FXImportRow{}, fmt.Sprintf("invalid rate %q", field("rate"))
	}
	source := fx.SourceManual
	if raw := field("source"); raw != "" {
		source = fx.Source(strings.ToLower(raw))
		if !source.Valid() {
			return FXImportRow{}, fmt.Sprintf("unknown source %q", raw)
		}
	}
	return FXImportRow{Currency: code, Date: date.Format(time.DateOnly), Rate: rate, Source: source}, ""
}

func writeFXSummary(opts FXImportOptions, summary FXImportSummary) error {
	if opts.JSONOutput {
		return json.NewEncoder(opts.Stdout).Encode(summary)
	}
	out := opts.Stdout
	fmt.Fprintf(out, "FX import (%s): %d accepted, %d rejected\n", summary.Mode, len(summary.Accepted), len(summary.Rejected))
	for _, row := range summary.Accepted {
		fmt.Fprintf(out, " + %s %s %s (%s)\n", row.Currency, row.Date, row.Rate.String(), row.Source)
	}
	for _, rej := range summary.Rejected {
		fmt.Fprintf(out, " ! line %d: %s\n", rej.Line, rej.Reason)
	}
	if summary.Applied > 0 {
		fmt.Fprintf(out, "Applied %d rate(s).\n", summary.Applied)
	}
	return nil
}
