package subject

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"resolute/internal/resolution/models"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

// PostgresStore persists Subjects in PostgreSQL. Optimistic locking rides
// on the version column: updates are compare-and-swap, never blind writes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, subj *Subject) error {
	addr, err := marshalAddress(subj.CanonicalAddress)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO subjects (
			id, canonical_name, canonical_email, canonical_phone, canonical_address,
			pii_types_found, source_records, merge_confidence, notification_required,
			flagged_for_review, status, merged_into, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = s.db.ExecContext(ctx, query,
		subj.ID.String(), subj.CanonicalName, subj.CanonicalEmail, subj.CanonicalPhone, addr,
		pq.Array(subj.PIITypesFound), pq.Array(recordIDs(subj.SourceRecords)),
		subj.MergeConfidence, subj.NotificationRequired,
		subj.FlaggedForReview, string(subj.Status), mergedInto(subj), subj.Version,
		subj.CreatedAt, subj.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, subjectID id.SubjectID) (*Subject, error) {
	row := s.db.QueryRowContext(ctx, selectSubjects+` WHERE id = $1`, subjectID.String())
	subj, err := scanSubject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return subj, nil
}

func (s *PostgresStore) Update(ctx context.Context, subj *Subject) error {
	addr, err := marshalAddress(subj.CanonicalAddress)
	if err != nil {
		return err
	}

	query := `
		UPDATE subjects SET
			canonical_name = $2, canonical_email = $3, canonical_phone = $4,
			canonical_address = $5, pii_types_found = $6, source_records = $7,
			merge_confidence = $8, notification_required = $9, flagged_for_review = $10,
			status = $11, merged_into = $12, version = version + 1, updated_at = $13
		WHERE id = $1 AND version = $14
	`
	res, err := s.db.ExecContext(ctx, query,
		subj.ID.String(), subj.CanonicalName, subj.CanonicalEmail, subj.CanonicalPhone,
		addr, pq.Array(subj.PIITypesFound), pq.Array(recordIDs(subj.SourceRecords)),
		subj.MergeConfidence, subj.NotificationRequired, subj.FlaggedForReview,
		string(subj.Status), mergedInto(subj), subj.UpdatedAt, subj.Version,
	)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subject rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish missing from stale.
		existing, getErr := s.Get(ctx, subj.ID)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return dErrors.Newf(dErrors.CodeNotFound, "subject %s not found", subj.ID)
		}
		return dErrors.Newf(dErrors.CodeConflict,
			"subject %s version %d is stale (stored %d)", subj.ID, subj.Version, existing.Version)
	}
	subj.Version++
	return nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status) ([]*Subject, error) {
	rows, err := s.db.QueryContext(ctx,
		selectSubjects+` WHERE status = $1 AND merged_into IS NULL ORDER BY created_at ASC, id ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list subjects by status: %w", err)
	}
	defer rows.Close()

	var out []*Subject
	for rows.Next() {
		subj, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, subj)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindByRecord(ctx context.Context, recordID id.RecordID) (*Subject, error) {
	row := s.db.QueryRowContext(ctx,
		selectSubjects+` WHERE $1 = ANY(source_records) AND merged_into IS NULL LIMIT 1`, string(recordID))
	subj, err := scanSubject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find subject by record: %w", err)
	}
	return subj, nil
}

const selectSubjects = `
	SELECT id, canonical_name, canonical_email, canonical_phone, canonical_address,
	       pii_types_found, source_records, merge_confidence, notification_required,
	       flagged_for_review, status, merged_into, version, created_at, updated_at
	FROM subjects
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubject(row rowScanner) (*Subject, error) {
	var (
		subj       Subject
		rawID      string
		status     string
		addrJSON   []byte
		types      pq.StringArray
		sources    pq.StringArray
		mergedInto sql.NullString
	)
	err := row.Scan(&rawID, &subj.CanonicalName, &subj.CanonicalEmail, &subj.CanonicalPhone,
		&addrJSON, &types, &sources, &subj.MergeConfidence, &subj.NotificationRequired,
		&subj.FlaggedForReview, &status, &mergedInto, &subj.Version, &subj.CreatedAt, &subj.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if mergedInto.Valid {
		mid, err := id.ParseSubjectID(mergedInto.String)
		if err != nil {
			return nil, err
		}
		subj.MergedInto = mid
	}

	sid, err := id.ParseSubjectID(rawID)
	if err != nil {
		return nil, err
	}
	subj.ID = sid
	subj.Status = Status(status)
	subj.PIITypesFound = []string(types)
	subj.SourceRecords = make([]id.RecordID, len(sources))
	for i, r := range sources {
		subj.SourceRecords[i] = id.RecordID(r)
	}
	if len(addrJSON) > 0 {
		var addr models.PostalAddress
		if err := json.Unmarshal(addrJSON, &addr); err != nil {
			return nil, fmt.Errorf("unmarshal canonical address: %w", err)
		}
		subj.CanonicalAddress = &addr
	}
	return &subj, nil
}

func marshalAddress(addr *models.PostalAddress) ([]byte, error) {
	if addr == nil {
		return nil, nil
	}
	b, err := json.Marshal(addr)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical address: %w", err)
	}
	return b, nil
}

func mergedInto(subj *Subject) sql.NullString {
	return sql.NullString{String: subj.MergedInto.String(), Valid: !subj.MergedInto.IsNil()}
}

func recordIDs(ids []id.RecordID) []string {
	out := make([]string, len(ids))
	for i, rid := range ids {
		out[i] = string(rid)
	}
	return out
}
