package store

import (
	"context"
	"database/sql"
	"fmt"

	"resolute/internal/resolution/models"
	id "resolute/pkg/domain"
)

// PostgresLinkStore persists pending merge links and the rejection ledger
// in PostgreSQL.
type PostgresLinkStore struct {
	db *sql.DB
}

func NewPostgresLinkStore(db *sql.DB) *PostgresLinkStore {
	return &PostgresLinkStore{db: db}
}

func (s *PostgresLinkStore) SaveLink(ctx context.Context, link *models.PendingMergeLink) error {
	query := `
		INSERT INTO pending_merge_links (
			id, subject_a, subject_b, record_a, record_b, pair_key, confidence, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		link.ID.String(), link.SubjectA.String(), link.SubjectB.String(),
		string(link.RecordA), string(link.RecordB), string(link.PairKey),
		link.Confidence, string(link.Status), link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pending merge link: %w", err)
	}
	return nil
}

func (s *PostgresLinkStore) GetLink(ctx context.Context, linkID id.LinkID) (*models.PendingMergeLink, error) {
	row := s.db.QueryRowContext(ctx, selectLinks+` WHERE id = $1`, linkID.String())
	link, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending merge link: %w", err)
	}
	return link, nil
}

func (s *PostgresLinkStore) UpdateLink(ctx context.Context, link *models.PendingMergeLink) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_merge_links SET status = $2 WHERE id = $1`,
		link.ID.String(), string(link.Status))
	if err != nil {
		return fmt.Errorf("update pending merge link: %w", err)
	}
	return nil
}

func (s *PostgresLinkStore) ListPending(ctx context.Context) ([]*models.PendingMergeLink, error) {
	rows, err := s.db.QueryContext(ctx,
		selectLinks+` WHERE status = 'PENDING' ORDER BY confidence ASC, pair_key ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending merge links: %w", err)
	}
	defer rows.Close()

	var out []*models.PendingMergeLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending merge link: %w", err)
		}
		out = append(out, link)
	}
	return out, rows.Err()
}

func (s *PostgresLinkStore) FindPendingByPair(ctx context.Context, key id.PairKey) (*models.PendingMergeLink, error) {
	row := s.db.QueryRowContext(ctx,
		selectLinks+` WHERE pair_key = $1 AND status = 'PENDING' LIMIT 1`, string(key))
	link, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending merge link by pair: %w", err)
	}
	return link, nil
}

func (s *PostgresLinkStore) MarkRejected(ctx context.Context, key id.PairKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rejected_pairs (pair_key) VALUES ($1) ON CONFLICT (pair_key) DO NOTHING`,
		string(key))
	if err != nil {
		return fmt.Errorf("insert rejected pair: %w", err)
	}
	return nil
}

func (s *PostgresLinkStore) RejectedPairs(ctx context.Context) (map[id.PairKey]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pair_key FROM rejected_pairs`)
	if err != nil {
		return nil, fmt.Errorf("list rejected pairs: %w", err)
	}
	defer rows.Close()

	out := make(map[id.PairKey]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan rejected pair: %w", err)
		}
		out[id.PairKey(key)] = true
	}
	return out, rows.Err()
}

const selectLinks = `
	SELECT id, subject_a, subject_b, record_a, record_b, pair_key, confidence, status, created_at
	FROM pending_merge_links
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*models.PendingMergeLink, error) {
	var (
		link               models.PendingMergeLink
		rawID, rawA, rawB  string
		recA, recB         string
		pairKey, rawStatus string
	)
	err := row.Scan(&rawID, &rawA, &rawB, &recA, &recB, &pairKey,
		&link.Confidence, &rawStatus, &link.CreatedAt)
	if err != nil {
		return nil, err
	}

	lid, err := id.ParseLinkID(rawID)
	if err != nil {
		return nil, err
	}
	sa, err := id.ParseSubjectID(rawA)
	if err != nil {
		return nil, err
	}
	sb, err := id.ParseSubjectID(rawB)
	if err != nil {
		return nil, err
	}

	link.ID = lid
	link.SubjectA = sa
	link.SubjectB = sb
	link.RecordA = id.RecordID(recA)
	link.RecordB = id.RecordID(recB)
	link.PairKey = id.PairKey(pairKey)
	link.Status = models.LinkStatus(rawStatus)
	return &link, nil
}
