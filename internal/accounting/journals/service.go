package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// RateResolver supplies the FX snapshot for journals proposed without one.
type RateResolver interface {
	Resolve(ctx context.Context, currency string, date time.Time) (fx.Snapshot, error)
}

// Observer receives posting outcomes for metrics.
type Observer interface {
	ObserveJournalPosted(companyID string)
	ObserveJournalRejected(reason string)
}

// Option configures a Service.
type Option func(*Service)

// WithRates enables FX resolution for foreign-currency journals that arrive without a rate.
func WithRates(rates RateResolver) Option {
	return func(s *Service) { s.rates = rates }
}

// WithAudit records posted and deleted journals in the audit log.
func WithAudit(audit AuditPort) Option {
	return func(s *Service) { s.audit = audit }
}

// WithObserver attaches a metrics observer.
func WithObserver(observer Observer) Option {
	return func(s *Service) { s.observer = observer }
}

// WithLogger overrides the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service validates proposed journals and persists them atomically.
type Service struct {
	repo     Repository
	chart    Chart
	rates    RateResolver
	audit    AuditPort
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, chart Chart, opts ...Option) *Service {
	s := &Service{repo: repo, chart: chart, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates and persists a single journal.
func (s *Service) Post(ctx context.Context, input PostingInput) (JournalEntry, error) {
	entries, err := s.PostBatch(ctx, []PostingInput{input})
	if err != nil {
		return JournalEntry{}, err
	}
	return entries[0], nil
}

// PostBatch persists every journal or none of them.
func (s *Service) PostBatch(ctx context.Context, inputs []PostingInput) ([]JournalEntry, error) {
	entries, err := s.Build(ctx, inputs...)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return Insert(ctx, tx, entries)
	})
	if err != nil {
		return nil, shared.Storage("post journals", err)
	}
	s.Published(ctx, entries)
	return entries, nil
}

// Build validates inputs and returns the entries Insert will write. Nothing
// is persisted; callers that own a transaction use Build, Insert and
// Published in sequence.
func (s *Service) Build(ctx context.Context, inputs ...PostingInput) ([]JournalEntry, error) {
	if len(inputs) == 0 {
		return nil, errors.New("accounting: no journals to post")
	}
	now := s.now().UTC()
	entries := make([]JournalEntry, 0, len(inputs))
	for idx, input := range inputs {
		if err := input.Validate(s.chart); err != nil {
			s.reject(err)
			if len(inputs) > 1 {
				return nil, fmt.Errorf("journal %d for %s: %w", idx, input.CompanyID, err)
			}
			return nil, err
		}
		snap, err := s.snapshot(ctx, input.Journal)
		if err != nil {
			s.reject(err)
			return nil, err
		}
		entries = append(entries, s.entry(input, snap, now))
	}
	return entries, nil
}

// Insert writes prepared entries and their lines through tx.
func Insert(ctx context.Context, tx TxRepository, entries []JournalEntry) error {
	for _, entry := range entries {
		if err := tx.InsertJournalEntry(ctx, entry); err != nil {
			return err
		}
		if err := tx.InsertJournalLines(ctx, entry.ID, entry.Lines); err != nil {
			return err
		}
	}
	return nil
}

// Published records audit rows and metrics for committed entries.
func (s *Service) Published(ctx context.Context, entries []JournalEntry) {
	for _, entry := range entries {
		if s.observer != nil {
			s.observer.ObserveJournalPosted(entry.CompanyID)
		}
		if s.audit == nil {
			continue
		}
		debit, _ := entry.Totals()
		if err := s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  entry.CreatedBy,
			Action:   "journal.post",
			Entity:   "journal_entry",
			EntityID: entry.ID.String(),
			Meta: map[string]any{
				"company_id":  entry.CompanyID,
				"source_type": entry.SourceDocumentType,
				"source_id":   entry.SourceDocumentID,
				"total":       debit.StringFixed(2),
				"currency":    entry.Currency,
			},
			At: s.now(),
		}); err != nil {
			s.logger.Warn("audit journal post", slog.String("entry_id", entry.ID.String()), slog.Any("error", err))
		}
	}
}

// DeleteBySourceDocument removes every journal (and its lines) posted for the
// source document. Deleting a document with no journals is not an error.
func (s *Service) DeleteBySourceDocument(ctx context.Context, sourceType, sourceID string) (int, error) {
	if sourceType == "" || sourceID == "" {
		return 0, errors.New("accounting: source document required")
	}
	var deleted []uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids, err := tx.DeleteBySource(ctx, sourceType, sourceID)
		deleted = ids
		return err
	})
	if err != nil {
		return 0, shared.Storage("delete journals", err)
	}
	if s.audit != nil && len(deleted) > 0 {
		ids := make([]string, len(deleted))
		for i, id := range deleted {
			ids[i] = id.String()
		}
		if err := s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  internalShared.ActorFromContext(ctx),
			Action:   "journal.delete",
			Entity:   sourceType,
			EntityID: sourceID,
			Meta:     map[string]any{"entries": ids},
			At:       s.now(),
		}); err != nil {
			s.logger.Warn("audit journal delete", slog.String("source_id", sourceID), slog.Any("error", err))
		}
	}
	return len(deleted), nil
}

func (s *Service) ListBySourceDocument(ctx context.Context, sourceType, sourceID string) ([]JournalEntry, error) {
	entries, err := s.repo.ListBySource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, shared.Storage("list journals", err)
	}
	return entries, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (JournalEntry, error) {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return JournalEntry{}, shared.Storage("get journal", err)
	}
	return entry, nil
}

func (s *Service) snapshot(ctx context.Context, journal ProposedJournal) (fx.Snapshot, error) {
	currency, err := fx.NormalizeCurrency(journal.Currency)
	if err != nil {
		return fx.Snapshot{}, err
	}
	if journal.FXRate.IsPositive() {
		source := journal.FXSource
		if source == "" {
			source = fx.SourceManual
		}
		return fx.Snapshot{From: currency, To: fx.BaseCurrency, Rate: journal.FXRate, Date: fx.Day(journal.EntryDate), Source: source}, nil
	}
	if currency == fx.BaseCurrency {
		return fx.Identity(journal.EntryDate), nil
	}
	if s.rates == nil {
		return fx.Snapshot{}, fmt.Errorf("%w: no rate for %s", fx.ErrRateUnavailable, currency)
	}
	return s.rates.Resolve(ctx, currency, journal.EntryDate)
}

func (s *Service) entry(input PostingInput, snap fx.Snapshot, now time.Time) JournalEntry {
	entryID := uuid.New()
	entry := JournalEntry{
		ID:                 entryID,
		EventID:            input.EventID,
		CompanyID:          input.CompanyID,
		EntryDate:          fx.Day(input.Journal.EntryDate),
		SourceDocumentType: input.SourceDocumentType,
		SourceDocumentID:   input.SourceDocumentID,
		Description:        strings.TrimSpace(input.Journal.Description),
		Currency:           snap.From,
		FXRate:             snap.Rate,
		FXSource:           snap.Source,
		CreatedBy:          input.CreatedBy,
		CreatedAt:          now,
		Lines:              make([]JournalLine, 0, len(input.Journal.Lines)),
	}
	if entry.CreatedBy == "" {
		entry.CreatedBy = internalShared.SystemActor
	}
	for idx, line := range input.Journal.Lines {
		jl := JournalLine{
			ID:          uuid.New(),
			EntryID:     entryID,
			LineNo:      idx + 1,
			AccountCode: line.AccountCode,
			Debit:       internalShared.Round2(line.Debit),
			Credit:      internalShared.Round2(line.Credit),
			BaseDebit:   toBase(line.Debit, snap.Rate),
			BaseCredit:  toBase(line.Credit, snap.Rate),
			Description: line.Description,
		}
		if line.ProjectID != "" {
			project := line.ProjectID
			jl.ProjectID = &project
		}
		entry.Lines = append(entry.Lines, jl)
	}
	return entry
}

func (s *Service) reject(err error) {
	if s.observer == nil {
		return
	}
	reason := "invalid"
	switch {
	case errors.Is(err, shared.ErrUnbalanced):
		reason = "unbalanced"
	case errors.Is(err, shared.ErrAccountResolution):
		reason = "account"
	case errors.Is(err, shared.ErrCurrencyMismatch):
		reason = "currency"
	case errors.Is(err, fx.ErrRateUnavailable):
		reason = "fx"
	}
	s.observer.ObserveJournalRejected(reason)
}

func toBase(amount, rate decimal.Decimal) decimal.Decimal {
	if amount.IsZero() {
		return decimal.Zero
	}
	return internalShared.Round2(amount.Mul(rate))
}
