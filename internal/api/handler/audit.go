package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/arvid/tenantdb/internal/api/request"
	"github.com/arvid/tenantdb/internal/api/response"
	"github.com/arvid/tenantdb/internal/model"
)

// AuditDB is the read surface the audit endpoint needs.
type AuditDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Audit struct {
	db AuditDB
}

func NewAudit(db AuditDB) *Audit {
	return &Audit{db: db}
}

// List returns audit entries newest first, filterable by tenant and
// event, with keyset pagination on the entry ID.
func (h *Audit) List(w http.ResponseWriter, r *http.Request) {
	p := request.ParsePagination(r)

	query := `SELECT id, actor, event, tenant_id, detail, created_at FROM audit_logs`
	var args []any
	argIdx := 1
	where := func(clause string, arg any) {
		if len(args) == 0 {
			query += " WHERE "
		} else {
			query += " AND "
		}
		query += clause + "$" + strconv.Itoa(argIdx)
		args = append(args, arg)
		argIdx++
	}

	if tenant := r.URL.Query().Get("tenant_id"); tenant != "" {
		where("tenant_id = ", tenant)
	}
	if event := r.URL.Query().Get("event"); event != "" {
		where("event = ", event)
	}
	if p.Cursor != "" {
		beforeID, err := strconv.ParseInt(p.Cursor, 10, 64)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		where("id < ", beforeID)
	}

	query += " ORDER BY id DESC LIMIT $" + strconv.Itoa(argIdx)
	args = append(args, p.Limit+1)

	rows, err := h.db.Query(r.Context(), query, args...)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0, p.Limit)
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Event, &e.TenantID, &e.Detail, &e.CreatedAt); err != nil {
			writeDomainError(w, err)
			return
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		writeDomainError(w, err)
		return
	}

	hasMore := len(entries) > p.Limit
	if hasMore {
		entries = entries[:p.Limit]
	}
	var nextCursor string
	if hasMore && len(entries) > 0 {
		nextCursor = strconv.FormatInt(entries[len(entries)-1].ID, 10)
	}
	response.WritePaginated(w, http.StatusOK, entries, nextCursor, hasMore)
}
