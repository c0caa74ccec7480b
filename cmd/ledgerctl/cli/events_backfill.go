package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// EventProcessor posts one accounting event.
type EventProcessor interface {
	CreateAndProcess(ctx context.Context, in events.Input) events.ProcessResult
}

// BackfillOptions configures the events backfill command.
type BackfillOptions struct {
	IO
	Source       string
	SourceReader io.Reader
	Mode         Mode
	JSONOutput   bool
	// Force supersedes active events for the same source document.
	Force bool
	Actor string
}

// BackfillLine reports the outcome for one JSONL line.
type BackfillLine struct {
	Line           int         `json:"line"`
	EventType      string      `json:"event_type,omitempty"`
	SourceDocument string      `json:"source_document,omitempty"`
	EventID        *uuid.UUID  `json:"event_id,omitempty"`
	JournalEntries []uuid.UUID `json:"journal_entry_ids,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// BackfillSummary is the structured report of a backfill run.
type BackfillSummary struct {
	Mode    Mode           `json:"mode"`
	Valid   int            `json:"valid"`
	Posted  int            `json:"posted"`
	Failed  int            `json:"failed"`
	Results []BackfillLine `json:"results"`
}

type backfillItem struct {
	line  int
	input events.Input
	label string
}

// EventsBackfill replays a JSONL file of raw events through processor.
// Every line is decoded and validated before anything is posted; dry mode
// stops there. Exit code 10 signals rejected or failed lines.
func EventsBackfill(ctx context.Context, processor EventProcessor, opts BackfillOptions) int {
	opts.defaults()
	mode, err := parseMode(opts.Mode)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "events backfill: %v\n", err)
		return ExitFailure
	}
	data, err := readSource(opts.Source, opts.SourceReader, opts.Stdin)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "events backfill: %v\n", err)
		return ExitFailure
	}
	actor := strings.TrimSpace(opts.Actor)
	if actor == "" {
		actor = "ledgerctl"
	}

	summary := BackfillSummary{Mode: mode, Results: []BackfillLine{}}
	items, err := decodeBackfill(data, actor, opts.Force, &summary)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "events backfill: %v\n", err)
		return ExitFailure
	}
	summary.Valid = len(items)

	if mode == ModeApply && len(items) > 0 {
		if summary.Failed > 0 {
			fmt.Fprintf(opts.Stderr, "events backfill: %d line(s) rejected, fix the source before applying\n", summary.Failed)
			_ = writeBackfillSummary(opts, summary)
			return ExitRejected
		}
		ok, err := opts.Confirm(fmt.Sprintf("Post %d event(s)?", len(items)), opts.Stdin, opts.Stdout)
		if err != nil {
			fmt.Fprintf(opts.Stderr, "events backfill: confirmation failed: %v\n", err)
			return ExitFailure
		}
		if !ok {
			fmt.Fprintln(opts.Stderr, "events backfill: cancelled by user")
			return ExitFailure
		}
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				fmt.Fprintf(opts.Stderr, "events backfill: %v\n", err)
				_ = writeBackfillSummary(opts, summary)
				return ExitFailure
			}
			res := processor.CreateAndProcess(ctx, item.input)
			line := BackfillLine{
				Line:           item.line,
				EventType:      string(item.input.EventType),
				SourceDocument: item.label,
				EventID:        res.EventID,
				JournalEntries: res.JournalEntryIDs,
			}
			if res.Success {
				summary.Posted++
			} else {
				summary.Failed++
				line.Error = res.Error
			}
			summary.Results = append(summary.Results, line)
		}
	}

	if err := writeBackfillSummary(opts, summary); err != nil {
		fmt.Fprintf(opts.Stderr, "events backfill: %v\n", err)
		return ExitFailure
	}
	if summary.Failed > 0 {
		return ExitRejected
	}
	return ExitOK
}

func decodeBackfill(data []byte, actor string, force bool, summary *BackfillSummary) ([]backfillItem, error) {
	validate := internalShared.NewValidator()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var items []backfillItem
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		var raw events.RawInput
		reject := func(err error) {
			summary.Failed++
			summary.Results = append(summary.Results, BackfillLine{
				Line:      lineNo,
				EventType: string(raw.EventType),
				Error:     err.Error(),
			})
		}
		if err := json.Unmarshal(text, &raw); err != nil {
			reject(fmt.Errorf("decode: %w", err))
			continue
		}
		if err := validate.Struct(raw); err != nil {
			reject(err)
			continue
		}
		if force {
			raw.ForcePost = true
		}
		in, err := raw.Input(actor)
		if err != nil {
			reject(err)
			continue
		}
		items = append(items, backfillItem{
			line:  lineNo,
			input: in,
			label: raw.SourceDocumentType + ":" + raw.SourceDocumentID,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func writeBackfillSummary(opts BackfillOptions, summary BackfillSummary) error {
	if opts.JSONOutput {
		return json.NewEncoder(opts.Stdout).Encode(summary)
	}
	out := opts.Stdout
	fmt.Fprintf(out, "Events backfill (%s): %d valid, %d posted, %d failed\n", summary.Mode, summary.Valid, summary.Posted, summary.Failed)
	for _, res := range summary.Results {
		if res.Error != "" {
			fmt.Fprintf(out, " ! line %d %s: %s\n", res.Line, res.EventType, res.Error)
			continue
		}
		fmt.Fprintf(out, " + line %d %s %s (%d journal(s))\n", res.Line, res.EventType, res.SourceDocument, len(res.JournalEntries))
	}
	return nil
}
