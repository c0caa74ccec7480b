package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// AuditLog is one row of audit_logs.
type AuditLog struct {
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger appends to audit_logs.
type AuditLogger struct {
	db  Execer
	now func() time.Time
}

func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db, now: time.Now}
}

const insertAudit = `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// Record writes entry. A missing actor is stamped as the system actor and a
// zero At as the current time.
func (l *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit: logger not configured")
	}
	switch {
	case entry.Action == "":
		return errors.New("audit: action required")
	case entry.Entity == "" || entry.EntityID == "":
		return errors.New("audit: entity and entity id required")
	}
	if entry.ActorID == "" {
		entry.ActorID = SystemActor
	}
	if entry.At.IsZero() {
		entry.At = l.now()
	}
	meta := entry.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("audit: encode meta: %w", err)
	}
	if _, err := l.db.Exec(ctx, insertAudit, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, encoded, entry.At.UTC()); err != nil {
		return fmt.Errorf("audit: insert %s %s: %w", entry.Entity, entry.Action, err)
	}
	return nil
}
