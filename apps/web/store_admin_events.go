package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"sambodhan/libs/grievanceapi"
)

const (
	eventStatusUpdate            = "status_update"
	eventMisclassificationReport = "misclassification_report"
	eventMisclassificationDelete = "misclassification_delete"
	eventAdminRegister           = "admin_register"
	adminEventListLimit          = 50
)

// AdminEvent is one entry of the append-only admin activity log.
type AdminEvent struct {
	ID          int64
	CreatedAt   time.Time
	AdminID     int
	AdminRole   grievanceapi.Role
	Action      string
	ComplaintID *int
	Metadata    map[string]any
}

type adminEventStore interface {
	Record(ctx context.Context, event AdminEvent) error
	List(ctx context.Context, adminID, limit int) ([]AdminEvent, error)
}

type sqlAdminEventStore struct {
	db *sql.DB
}

func newSQLAdminEventStore(db *sql.DB) *sqlAdminEventStore {
	return &sqlAdminEventStore{db: db}
}

func (s *sqlAdminEventStore) Record(ctx context.Context, event AdminEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_events (admin_id, admin_role, action, complaint_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, event.AdminID, string(event.AdminRole), event.Action, nullableInt(event.ComplaintID), metadataJSON(event.Metadata))
	return err
}

// List returns the newest events first. adminID 0 lists every admin.
func (s *sqlAdminEventStore) List(ctx context.Context, adminID, limit int) ([]AdminEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = adminEventListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, admin_id, admin_role, action, complaint_id, metadata
		FROM admin_events
		WHERE ($1 = 0 OR admin_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, adminID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]AdminEvent, 0)
	for rows.Next() {
		var event AdminEvent
		var role string
		var complaintID sql.NullInt64
		var metadata []byte
		if err := rows.Scan(&event.ID, &event.CreatedAt, &event.AdminID, &role, &event.Action, &complaintID, &metadata); err != nil {
			return nil, err
		}
		event.AdminRole = grievanceapi.Role(role)
		if complaintID.Valid {
			id := int(complaintID.Int64)
			event.ComplaintID = &id
		}
		event.Metadata = map[string]any{}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &event.Metadata)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func metadataJSON(value map[string]any) []byte {
	if value == nil {
		return []byte("{}")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// logAdminEventStore is used when no database is configured. Events are
// written to the structured log and List is always empty.
type logAdminEventStore struct {
	log *slog.Logger
}

func (s *logAdminEventStore) Record(ctx context.Context, event AdminEvent) error {
	attrs := []any{"admin_id", event.AdminID, "admin_role", string(event.AdminRole), "action", event.Action}
	if event.ComplaintID != nil {
		attrs = append(attrs, "complaint_id", *event.ComplaintID)
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, "metadata", event.Metadata)
	}
	s.log.InfoContext(ctx, "admin event", attrs...)
	return nil
}

func (s *logAdminEventStore) List(ctx context.Context, adminID, limit int) ([]AdminEvent, error) {
	return []AdminEvent{}, nil
}

// recordAdminEvent never fails the mutation that triggered it.
func (a *App) recordAdminEvent(ctx context.Context, admin grievanceapi.Admin, action string, complaintID *int, metadata map[string]any) {
	if a.events == nil {
		return
	}
	event := AdminEvent{
		AdminID:     admin.ID,
		AdminRole:   admin.Role,
		Action:      action,
		ComplaintID: complaintID,
		Metadata:    metadata,
	}
	if err := a.events.Record(context.WithoutCancel(ctx), event); err != nil {
		a.log.WarnContext(ctx, "record admin event failed", "action", action, "admin_id", admin.ID, "error", err)
	}
}
