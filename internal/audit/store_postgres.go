package audit

import (
	"context"
	"database/sql"
	"fmt"

	id "resolute/pkg/domain"
)

// PostgresStore persists audit events in PostgreSQL. The table is insert
// only; this package carries no UPDATE or DELETE statements.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (
			id, event_type, actor, subject_id, entity_id, decision,
			rationale, regulatory_basis, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID.String(), string(event.Type), event.Actor,
		nullable(event.SubjectID), nullable(event.EntityID), nullable(event.Decision),
		nullable(event.Rationale), nullable(event.RegulatoryBasis), event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		selectEvents+` WHERE subject_id = $1 ORDER BY created_at ASC`, subjectID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events by subject: %w", err)
	}
	return collectEvents(rows)
}

func (s *PostgresStore) ListByType(ctx context.Context, eventType EventType) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		selectEvents+` WHERE event_type = $1 ORDER BY created_at ASC`, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("list audit events by type: %w", err)
	}
	return collectEvents(rows)
}

const selectEvents = `
	SELECT id, event_type, actor, subject_id, entity_id, decision,
	       rationale, regulatory_basis, created_at
	FROM audit_events
`

func collectEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e                                            Event
			rawID, rawType                               string
			subjectID, entityID, decision, rationale, rb sql.NullString
		)
		err := rows.Scan(&rawID, &rawType, &e.Actor, &subjectID, &entityID,
			&decision, &rationale, &rb, &e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		eid, err := id.ParseEventID(rawID)
		if err != nil {
			return nil, err
		}
		e.ID = eid
		e.Type = EventType(rawType)
		e.SubjectID = subjectID.String
		e.EntityID = entityID.String
		e.Decision = decision.String
		e.Rationale = rationale.String
		e.RegulatoryBasis = rb.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
