package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/integrity"
)

type recordingImporter struct {
	snaps []fx.Snapshot
	err   error
}

func (r *recordingImporter) Import(_ context.Context, snap fx.Snapshot) (fx.Snapshot, error) {
	if r.err != nil {
		return fx.Snapshot{}, r.err
	}
	r.snaps = append(r.snaps, snap)
	return snap, nil
}

func confirmWith(answer bool) func(string, io.Reader, io.Writer) (bool, error) {
	return func(string, io.Reader, io.Writer) (bool, error) { return answer, nil }
}

const ratesCSV = `currency,date,rate,source
usd,2024-06-03,36.25,
EUR,2024-06-03,39.10,api
# comment
`

func TestFXImportDryRunJSON(t *testing.T) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	importer := &recordingImporter{}
	code := FXImport(context.Background(), importer, FXImportOptions{
		IO:           IO{Stdout: stdout, Stderr: stderr},
		SourceReader: strings.NewReader(ratesCSV),
		JSONOutput:   true,
	})
	require.Equal(t, ExitOK, code, stderr.String())
	require.Empty(t, importer.snaps)

	var summary FXImportSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, ModeDry, summary.Mode)
	require.Len(t, summary.Accepted, 2)
	require.Equal(t, "EUR", summary.Accepted[0].Currency)
	require.Equal(t, fx.SourceAPI, summary.Accepted[0].Source)
	require.Equal(t, "USD", summary.Accepted[1].Currency)
	require.Equal(t, fx.SourceManual, summary.Accepted[1].Source)
}

func TestFXImportRejectsBadLines(t *testing.T) {
	src := "currency,date,rate\nTHB,2024-06-03,1\nUSD,June,36\nUSD,2024-06-03,-1\nUSD,2024-06-04,36\nUSD,2024-06-04,37\n"
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := FXImport(context.Background(), &recordingImporter{}, FXImportOptions{
		IO:           IO{Stdout: stdout, Stderr: stderr},
		SourceReader: strings.NewReader(src),
		JSONOutput:   true,
	})
	require.Equal(t, ExitRejected, code)

	var summary FXImportSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Len(t, summary.Accepted, 1)
	require.Len(t, summary.Rejected, 4)
	require.Contains(t, summary.Rejected[3].Reason, "duplicate of line 5")
}

func TestFXImportMissingColumns(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := FXImport(context.Background(), &recordingImporter{}, FXImportOptions{
		IO:           IO{Stdout: io.Discard, Stderr: stderr},
		SourceReader: strings.NewReader("currency,rate\nUSD,36\n"),
	})
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr.String(), "missing required columns")
}

func TestFXImportApplyRequiresConfirmation(t *testing.T) {
	importer := &recordingImporter{}
	stderr := new(bytes.Buffer)
	code := FXImport(context.Background(), importer, FXImportOptions{
		IO:           IO{Stdout: io.Discard, Stderr: stderr, Confirm: confirmWith(false)},
		SourceReader: strings.NewReader(ratesCSV),
		Mode:         ModeApply,
	})
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr.String(), "cancelled")
	require.Empty(t, importer.snaps)
}

func TestFXImportApply(t *testing.T) {
	importer := &recordingImporter{}
	stdout := new(bytes.Buffer)
	code := FXImport(context.Background(), importer, FXImportOptions{
		IO:           IO{Stdout: stdout, Stderr: io.Discard, Confirm: confirmWith(true)},
		SourceReader: strings.NewReader(ratesCSV),
		Mode:         ModeApply,
	})
	require.Equal(t, ExitOK, code)
	require.Len(t, importer.snaps, 2)
	require.True(t, importer.snaps[1].Rate.Equal(decimal.RequireFromString("36.25")))
	require.Contains(t, stdout.String(), "Applied 2 rate(s).")
}

func TestFXImportApplyStopsOnError(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := FXImport(context.Background(), &recordingImporter{err: errors.New("db down")}, FXImportOptions{
		IO:           IO{Stdout: io.Discard, Stderr: stderr, Confirm: confirmWith(true)},
		SourceReader: strings.NewReader(ratesCSV),
		Mode:         ModeApply,
	})
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr.String(), "db down")
}

func TestInvalidMode(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := FXImport(context.Background(), &recordingImporter{}, FXImportOptions{
		IO:           IO{Stdout: io.Discard, Stderr: stderr},
		SourceReader: strings.NewReader(ratesCSV),
		Mode:         "yolo",
	})
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr.String(), "invalid mode")
}

func TestDefaultConfirm(t *testing.T) {
	out := new(bytes.Buffer)
	ok, err := defaultConfirm("Go?", strings.NewReader("yes\n"), out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, out.String(), "Type YES to confirm")

	ok, err = defaultConfirm("Go?", strings.NewReader("no"), io.Discard)
	require.NoError(t, err)
	require.False(t, ok)
}

type recordingProcessor struct {
	inputs []events.Input
	fail   map[string]string
}

func (p *recordingProcessor) CreateAndProcess(_ context.Context, in events.Input) events.ProcessResult {
	p.inputs = append(p.inputs, in)
	id := uuid.New()
	if msg, ok := p.fail[in.SourceDocumentID]; ok {
		return events.ProcessResult{EventID: &id, Error: msg}
	}
	journal := uuid.New()
	return events.ProcessResult{Success: true, EventID: &id, JournalEntryID: &journal, JournalEntryIDs: []uuid.UUID{journal}}
}

func topUpLine(id string) string {
	return `{"event_type":"PETTYCASH_TOPUP_COMPLETED","event_date":"2024-06-03","affected_company_ids":["co-main"],` +
		`"source_document_type":"petty_cash_topup","source_document_id":"` + id + `",` +
		`"payload":{"topup_id":"` + id + `","wallet_id":"w-1","company_id":"co-main","currency":"THB","amount":"5000","bank_account_id":"bank-1"}}`
}

func TestEventsBackfillDryRun(t *testing.T) {
	src := topUpLine("tu-1") + "\n\n" + topUpLine("tu-2") + "\n"
	proc := &recordingProcessor{}
	stdout := new(bytes.Buffer)
	code := EventsBackfill(context.Background(), proc, BackfillOptions{
		IO:           IO{Stdout: stdout, Stderr: io.Discard},
		SourceReader: strings.NewReader(src),
		JSONOutput:   true,
	})
	require.Equal(t, ExitOK, code)
	require.Empty(t, proc.inputs)

	var summary BackfillSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, 2, summary.Valid)
	require.Zero(t, summary.Posted)
}

func TestEventsBackfillRejectsInvalidLines(t *testing.T) {
	src := topUpLine("tu-1") + "\n" +
		`{"event_type":"PETTYCASH_TOPUP_COMPLETED","event_date":"03/06/2024","affected_company_ids":["co-main"],"source_document_type":"x","source_document_id":"y","payload":{}}` + "\n" +
		"not json\n"
	proc := &recordingProcessor{}
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := EventsBackfill(context.Background(), proc, BackfillOptions{
		IO:           IO{Stdout: stdout, Stderr: stderr, Confirm: confirmWith(true)},
		SourceReader: strings.NewReader(src),
		Mode:         ModeApply,
		JSONOutput:   true,
	})
	require.Equal(t, ExitRejected, code)
	require.Empty(t, proc.inputs)
	require.Contains(t, stderr.String(), "2 line(s) rejected")
}

func TestEventsBackfillApplyForcesPost(t *testing.T) {
	src := topUpLine("tu-1") + "\n" + topUpLine("tu-2") + "\n"
	proc := &recordingProcessor{fail: map[string]string{"tu-2": "accounting: account could not be resolved"}}
	stdout := new(bytes.Buffer)
	code := EventsBackfill(context.Background(), proc, BackfillOptions{
		IO:           IO{Stdout: stdout, Stderr: io.Discard, Confirm: confirmWith(true)},
		SourceReader: strings.NewReader(src),
		Mode:         ModeApply,
		Force:        true,
		Actor:        "ops@faraway",
	})
	require.Equal(t, ExitRejected, code)
	require.Len(t, proc.inputs, 2)
	for _, in := range proc.inputs {
		require.True(t, in.ForcePost)
		require.Equal(t, "ops@faraway", in.ActorID)
	}
	require.Contains(t, stdout.String(), "1 posted, 1 failed")
	require.Contains(t, stdout.String(), "line 2 PETTYCASH_TOPUP_COMPLETED: accounting: account could not be resolved")
}

type fakeMigrator struct {
	version uint
	downs   int
}

func (m *fakeMigrator) Up() error { m.version = 3; return nil }
func (m *fakeMigrator) Down(steps int) error {
	m.downs += steps
	m.version -= uint(steps)
	return nil
}
func (m *fakeMigrator) Version() (uint, bool, error) { return m.version, false, nil }

func TestMigrateCommands(t *testing.T) {
	m := &fakeMigrator{}
	out := new(bytes.Buffer)
	require.Equal(t, ExitOK, Migrate(m, []string{"up"}, IO{Stdout: out, Stderr: io.Discard}))
	require.Contains(t, out.String(), "schema version 3")

	require.Equal(t, ExitFailure, Migrate(m, []string{"down", "2"}, IO{Stdout: io.Discard, Stderr: io.Discard, Confirm: confirmWith(false)}))
	require.Zero(t, m.downs)

	require.Equal(t, ExitOK, Migrate(m, []string{"down", "2"}, IO{Stdout: io.Discard, Stderr: io.Discard, Confirm: confirmWith(true)}))
	require.Equal(t, 2, m.downs)
	require.EqualValues(t, 1, m.version)

	require.Equal(t, ExitFailure, Migrate(m, []string{"down", "zero"}, IO{Stdout: io.Discard, Stderr: io.Discard}))
	require.Equal(t, ExitFailure, Migrate(m, []string{"sideways"}, IO{Stdout: io.Discard, Stderr: io.Discard}))
}

type stubScanner struct {
	report integrity.Report
	err    error
}

func (s stubScanner) Run(context.Context, time.Duration) (integrity.Report, error) {
	return s.report, s.err
}

func TestIntegrityCheck(t *testing.T) {
	out := new(bytes.Buffer)
	require.Equal(t, ExitOK, IntegrityCheck(context.Background(), stubScanner{}, IntegrityOptions{IO: IO{Stdout: out, Stderr: io.Discard}}))
	require.Contains(t, out.String(), "0 imbalance(s), 0 stuck event(s)")

	out.Reset()
	findings := integrity.Report{Imbalances: []integrity.Imbalance{{EntryID: uuid.New(), CompanyID: "co-main", SourceDocumentID: "RE-9",
		Lines: 1, Debit: decimal.NewFromInt(50), Credit: decimal.Zero}}}
	require.Equal(t, ExitRejected, IntegrityCheck(context.Background(), stubScanner{report: findings}, IntegrityOptions{IO: IO{Stdout: out, Stderr: io.Discard}}))
	require.Contains(t, out.String(), "lines=1 debit=50.00 credit=0.00")

	stderr := new(bytes.Buffer)
	require.Equal(t, ExitFailure, IntegrityCheck(context.Background(), stubScanner{err: errors.New("db down")}, IntegrityOptions{IO: IO{Stdout: io.Discard, Stderr: stderr}}))
	require.Contains(t, stderr.String(), "db down")
}
