package store

import (
	"context"
	"database/sql"
	"fmt"

	"resolute/internal/review/models"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
)

// PostgresTaskStore persists review tasks in PostgreSQL.
type PostgresTaskStore struct {
	db *sql.DB
}

func NewPostgresTaskStore(db *sql.DB) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

const selectTask = `
	SELECT id, queue, subject_id, link_id, confidence, required_role, status,
	       assigned_to, decision, rationale, regulatory_basis, version,
	       created_at, completed_at
	FROM review_tasks
`

func (s *PostgresTaskStore) Save(ctx context.Context, task *models.ReviewTask) error {
	query := `
		INSERT INTO review_tasks (
			id, queue, subject_id, link_id, confidence, required_role,
			status, assigned_to, decision, rationale, regulatory_basis,
			version, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID.String(), string(task.Queue),
		nullableID(task.SubjectID.IsNil(), task.SubjectID.String()),
		nullableID(task.LinkID.IsNil(), task.LinkID.String()),
		task.Confidence, string(task.RequiredRole), string(task.Status),
		nullableStr(task.AssignedTo), nullableStr(string(task.Decision)),
		nullableStr(task.Rationale), nullableStr(task.RegulatoryBasis),
		task.Version, task.CreatedAt, task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review task: %w", err)
	}
	return nil
}

func (s *PostgresTaskStore) Get(ctx context.Context, taskID id.TaskID) (*models.ReviewTask, error) {
	row := s.db.QueryRowContext(ctx, selectTask+` WHERE id = $1`, taskID.String())
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

func (s *PostgresTaskStore) Update(ctx context.Context, task *models.ReviewTask) error {
	query := `
		UPDATE review_tasks SET
			status = $2, assigned_to = $3, decision = $4, rationale = $5,
			regulatory_basis = $6, completed_at = $7, version = version + 1
		WHERE id = $1 AND version = $8
	`
	res, err := s.db.ExecContext(ctx, query,
		task.ID.String(), string(task.Status), nullableStr(task.AssignedTo),
		nullableStr(string(task.Decision)), nullableStr(task.Rationale),
		nullableStr(task.RegulatoryBasis), task.CompletedAt, task.Version,
	)
	if err != nil {
		return fmt.Errorf("update review task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update review task: %w", err)
	}
	if affected == 0 {
		existing, getErr := s.Get(ctx, task.ID)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return dErrors.Newf(dErrors.CodeNotFound, "task %s not found", task.ID)
		}
		return dErrors.Newf(dErrors.CodeConflict,
			"task %s version %d is stale (stored %d)", task.ID, task.Version, existing.Version)
	}
	task.Version++
	return nil
}

func (s *PostgresTaskStore) ListOpenByQueue(ctx context.Context, queue models.QueueType) ([]*models.ReviewTask, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTask+` WHERE queue = $1 AND status <> $2 ORDER BY confidence ASC, created_at ASC, id ASC`,
		string(queue), string(models.TaskCompleted))
	if err != nil {
		return nil, fmt.Errorf("list review tasks: %w", err)
	}
	return collectTasks(rows)
}

func (s *PostgresTaskStore) FindOpenBySubject(ctx context.Context, subjectID id.SubjectID, queue models.QueueType) (*models.ReviewTask, error) {
	row := s.db.QueryRowContext(ctx,
		selectTask+` WHERE queue = $1 AND subject_id = $2 AND status <> $3 LIMIT 1`,
		string(queue), subjectID.String(), string(models.TaskCompleted))
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

func (s *PostgresTaskStore) FindOpenByLink(ctx context.Context, linkID id.LinkID) (*models.ReviewTask, error) {
	row := s.db.QueryRowContext(ctx,
		selectTask+` WHERE link_id = $1 AND status <> $2 LIMIT 1`,
		linkID.String(), string(models.TaskCompleted))
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.ReviewTask, error) {
	var (
		task                                        models.ReviewTask
		rawID, queue, role, status                  string
		subjectID, linkID                           sql.NullString
		assignedTo, decision, rationale, regulatory sql.NullString
		completedAt                                 sql.NullTime
	)
	err := row.Scan(&rawID, &queue, &subjectID, &linkID, &task.Confidence,
		&role, &status, &assignedTo, &decision, &rationale, &regulatory,
		&task.Version, &task.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	taskID, err := id.ParseTaskID(rawID)
	if err != nil {
		return nil, err
	}
	task.ID = taskID
	task.Queue = models.QueueType(queue)
	task.RequiredRole = models.Role(role)
	task.Status = models.TaskStatus(status)
	task.AssignedTo = assignedTo.String
	task.Decision = models.Decision(decision.String)
	task.Rationale = rationale.String
	task.RegulatoryBasis = regulatory.String

	if subjectID.Valid {
		sid, err := id.ParseSubjectID(subjectID.String)
		if err != nil {
			return nil, err
		}
		task.SubjectID = sid
	}
	if linkID.Valid {
		lid, err := id.ParseLinkID(linkID.String)
		if err != nil {
			return nil, err
		}
		task.LinkID = lid
	}
	if completedAt.Valid {
		at := completedAt.Time
		task.CompletedAt = &at
	}
	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]*models.ReviewTask, error) {
	defer rows.Close()

	var out []*models.ReviewTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review task: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func nullableStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableID(isNil bool, s string) sql.NullString {
	return sql.NullString{String: s, Valid: !isNil}
}
