// Package audit writes the control-plane audit trail. Entries are
// buffered and written by a background goroutine so audit recording
// never adds latency to the resolution path.
package audit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/arvid/tenantdb/internal/model"
)

// DB is the write surface the recorder needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Recorder is an async audit trail writer.
type Recorder struct {
	db     DB
	logger zerolog.Logger
	ch     chan model.AuditEntry
	wg     sync.WaitGroup
}

func NewRecorder(db DB, logger zerolog.Logger) *Recorder {
	return newRecorder(db, logger, 1024)
}

func newRecorder(db DB, logger zerolog.Logger, buffer int) *Recorder {
	r := &Recorder{
		db:     db,
		logger: logger,
		ch:     make(chan model.AuditEntry, buffer),
	}
	r.wg.Add(1)
	go r.drain()
	return r
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for entry := range r.ch {
		_, err := r.db.Exec(
			// context.Background since this is async
			context.Background(),
			`INSERT INTO audit_logs (actor, event, tenant_id, detail, created_at)
			 VALUES ($1, $2, $3, $4, now())`,
			entry.Actor, entry.Event, entry.TenantID, entry.Detail,
		)
		if err != nil {
			r.logger.Error().Err(err).Str("event", entry.Event).Msg("failed to write audit log")
		}
	}
}

// Record enqueues an audit entry. If the buffer is full the entry is
// dropped and a warning logged rather than blocking the caller. Only
// for best-effort events; mandatory ones go through MustRecord.
func (r *Recorder) Record(actor, event string, tenantID *model.TenantID, detail any) {
	select {
	case r.ch <- entry(actor, event, tenantID, detail):
	default:
		r.logger.Warn().Str("event", event).Msg("audit log buffer full, dropping entry")
	}
}

// MustRecord enqueues an entry that may never be lost, such as a
// denied resolution. When the buffer is full the caller blocks until
// the writer catches up instead of dropping the entry.
func (r *Recorder) MustRecord(actor, event string, tenantID *model.TenantID, detail any) {
	r.ch <- entry(actor, event, tenantID, detail)
}

func entry(actor, event string, tenantID *model.TenantID, detail any) model.AuditEntry {
	var raw json.RawMessage
	if detail != nil {
		raw, _ = json.Marshal(detail)
	}
	return model.AuditEntry{Actor: actor, Event: event, TenantID: tenantID, Detail: raw}
}

// Close flushes remaining entries and stops the writer.
func (r *Recorder) Close() {
	close(r.ch)
	r.wg.Wait()
}
