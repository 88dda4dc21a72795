package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"huddle/cmd/identity"
)

// auditExecer is satisfied by *pgxpool.Pool.
type auditExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLog appends auth events to <schema>.audit_log. Failures are logged
// and never reach the caller. A nil *AuditLog records nothing.
type AuditLog struct {
	db    auditExecer
	table string
	log   *slog.Logger
}

// NewAuditLog writes to schema (identity.DefaultSchema when empty).
func NewAuditLog(db auditExecer, schema string, log *slog.Logger) (*AuditLog, error) {
	if db == nil {
		return nil, fmt.Errorf("audit: nil db")
	}
	if schema == "" {
		schema = identity.DefaultSchema
	}
	if !identity.PGIdentIsValid(schema) {
		return nil, fmt.Errorf("audit: invalid schema identifier")
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuditLog{db: db, table: identity.PGIdent(schema, "audit_log"), log: log}, nil
}

type auditEvent struct {
	action    string
	userID    string
	sessionID string
	ip        net.IP
	userAgent string
	meta      map[string]any
}

func (a *AuditLog) record(ctx context.Context, now time.Time, ev auditEvent) {
	if a == nil {
		return
	}
	action := strings.TrimSpace(ev.action)
	if action == "" {
		return
	}

	id, err := identity.NewULID(now)
	if err != nil {
		a.log.Error("auth.audit.id.fail", "err", err, "action", action)
		return
	}

	var ipVal any
	if ev.ip != nil {
		ipVal = ev.ip.String()
	}

	metaVal := "{}"
	if len(ev.meta) > 0 {
		if b, err := json.Marshal(ev.meta); err == nil {
			metaVal = string(b)
		}
	}

	_, err = a.db.Exec(ctx, `
		INSERT INTO `+a.table+` (
			id, user_id, session_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
	`, id, trimOrNil(ev.userID), trimOrNil(ev.sessionID), action, now.UTC(), ipVal, trimOrNil(ev.userAgent), metaVal)
	if err != nil {
		a.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
