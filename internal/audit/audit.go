// Package audit keeps a local trail of what the workers did to applications in the record store.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"soloparent-workers/internal/common/logger"

	"github.com/google/uuid"
)

const (
	ActionSubmitted     = "application_submitted"
	ActionSubmitFailed  = "application_submit_failed"
	ActionUpdated       = "application_updated"
	ActionDeleted       = "application_deleted"
	ActionTicketCreated = "support_ticket_created"
)

const schema = `
CREATE TABLE IF NOT EXISTS application_audit_log (
	id                  UUID PRIMARY KEY,
	application_id      TEXT,
	action              TEXT NOT NULL,
	status              TEXT NOT NULL,
	error_code          TEXT,
	rollback_incomplete BOOLEAN NOT NULL DEFAULT FALSE,
	details             JSONB,
	created_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_application_audit_log_application_id ON application_audit_log (application_id);`

type Entry struct {
	ApplicationID      string
	Action             string
	Status             string
	ErrorCode          string
	RollbackIncomplete bool
	Details            map[string]interface{}
}

// Recorder writes entries to Postgres. A nil Recorder or one without a database drops every
// entry, so workers can run with auditing switched off.
type Recorder struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewRecorder(db *sql.DB, log logger.Logger) *Recorder {
	return &Recorder{db: db, logger: log, now: time.Now}
}

func (r *Recorder) enabled() bool { return r != nil && r.db != nil }

func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if !r.enabled() {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Record inserts e and returns its id.
func (r *Recorder) Record(ctx context.Context, e Entry) (string, error) {
	if !r.enabled() {
		return "", nil
	}

	details := []byte("{}")
	if len(e.Details) > 0 {
		var err error
		if details, err = json.Marshal(e.Details); err != nil {
			return "", fmt.Errorf("marshal audit details: %w", err)
		}
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO application_audit_log (
			id, application_id, action, status, error_code, rollback_incomplete, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id,
		nullable(e.ApplicationID),
		e.Action,
		e.Status,
		nullable(e.ErrorCode),
		e.RollbackIncomplete,
		details,
		r.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert audit entry: %w", err)
	}
	return id, nil
}

// RecordBestEffort records e and only logs a failure.
func (r *Recorder) RecordBestEffort(ctx context.Context, e Entry) {
	if _, err := r.Record(ctx, e); err != nil {
		r.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":         err,
			"action":        e.Action,
			"applicationId": e.ApplicationID,
		})
	}
}

// History returns the newest entries for one application first.
func (r *Recorder) History(ctx context.Context, applicationID string, limit int) ([]Entry, error) {
	if !r.enabled() {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT application_id, action, status, COALESCE(error_code, ''), rollback_incomplete, details
		FROM application_audit_log
		WHERE application_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, applicationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			details []byte
		)
		if err := rows.Scan(&e.ApplicationID, &e.Action, &e.Status, &e.ErrorCode, &e.RollbackIncomplete, &details); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
