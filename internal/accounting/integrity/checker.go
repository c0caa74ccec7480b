package integrity

import (
	"context"
	"log/slog"
	"time"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
)

const (
	defaultLimit = 100
	defaultGrace = 15 * time.Minute
)

// Checker scans the ledger for imbalanced journals and stuck events.
type Checker struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
	limit  int
	grace  time.Duration
}

// NewChecker builds a checker.
func NewChecker(repo Repository, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		repo:   repo,
		logger: logger.With(slog.String("component", "integrity")),
		now:    time.Now,
		limit:  defaultLimit,
		grace:  defaultGrace,
	}
}

func (c *Checker) WithNow(now func() time.Time) { c.now = now }

// Run performs one scan and logs every finding. Unprocessed events younger
// than grace are skipped; zero uses the default of 15 minutes.
func (c *Checker) Run(ctx context.Context, grace time.Duration) (Report, error) {
	if grace <= 0 {
		grace = c.grace
	}
	now := c.now().UTC()
	report := Report{CheckedAt: now, Imbalances: []Imbalance{}, StuckEvents: []StuckEvent{}}

	imbalances, err := c.repo.Imbalances(ctx, c.limit)
	if err != nil {
		return report, shared.Storage("scan journal balances", err)
	}
	stuck, err := c.repo.StuckEvents(ctx, now.Add(-grace), c.limit)
	if err != nil {
		return report, shared.Storage("scan unprocessed events", err)
	}
	report.Imbalances = append(report.Imbalances, imbalances...)
	report.StuckEvents = append(report.StuckEvents, stuck...)

	for _, im := range report.Imbalances {
		c.logger.Error("journal entry out of balance",
			slog.String("entry_id", im.EntryID.String()),
			slog.String("company_id", im.CompanyID),
			slog.String("source_id", im.SourceDocumentID),
			slog.Int("lines", im.Lines),
			slog.String("debit", im.Debit.StringFixed(2)),
			slog.String("credit", im.Credit.StringFixed(2)))
	}
	for _, ev := range report.StuckEvents {
		c.logger.Warn("event never posted",
			slog.String("event_id", ev.EventID.String()),
			slog.String("event_type", ev.EventType),
			slog.String("source_id", ev.SourceDocumentID),
			slog.Time("created_at", ev.CreatedAt),
			slog.String("post_error", ev.PostError))
	}
	c.logger.Info("ledger integrity scan finished",
		slog.Int("imbalances", len(report.Imbalances)),
		slog.Int("stuck_events", len(report.StuckEvents)))
	return report, nil
}
