package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// ==================== Artifact Store ====================

// artifactStore implements driven.ArtifactStore. Segments and the audit
// trail are stored as JSON columns.
type artifactStore struct {
	store *Store
}

var _ driven.ArtifactStore = (*artifactStore)(nil)

// Save creates or replaces an artifact.
func (s *artifactStore) Save(ctx context.Context, a domain.Artifact) error {
	segments, err := marshalJSON(a.Segments)
	if err != nil {
		return fmt.Errorf("encoding segments: %w", err)
	}
	audit, err := marshalJSON(a.Audit)
	if err != nil {
		return fmt.Errorf("encoding audit: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, segments, audit, approved, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			segments = excluded.segments,
			audit = excluded.audit,
			approved = excluded.approved,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, a.ID, segments, audit, boolToInt(a.Approved), a.Version,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}
	return nil
}

// Get retrieves an artifact by ID.
func (s *artifactStore) Get(ctx context.Context, id string) (*domain.Artifact, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, segments, audit, approved, version, created_at, updated_at
		FROM artifacts WHERE id = ?
	`, id)

	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns all artifacts ordered by ID.
func (s *artifactStore) List(ctx context.Context) ([]domain.Artifact, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, segments, audit, approved, version, created_at, updated_at
		FROM artifacts ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []domain.Artifact //nolint:prealloc // size unknown from query
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifacts: %w", err)
	}
	return artifacts, nil
}

// Delete removes an artifact.
func (s *artifactStore) Delete(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM artifacts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanArtifact(row rowScanner) (domain.Artifact, error) {
	var a domain.Artifact
	var segments, audit string
	var approved int
	var createdAt, updatedAt sql.NullString

	if err := row.Scan(&a.ID, &segments, &audit, &approved, &a.Version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("scanning artifact: %w", err)
	}

	var err error
	if a.Segments, err = unmarshalJSON[domain.TextSegment](segments); err != nil {
		return a, fmt.Errorf("artifact %s segments: %w", a.ID, err)
	}
	if a.Audit, err = unmarshalJSON[domain.AuditEntry](audit); err != nil {
		return a, fmt.Errorf("artifact %s audit: %w", a.ID, err)
	}
	a.Approved = approved == 1
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}
