package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// ==================== Job Store ====================

// jobStore implements driven.JobStore. Every archived attempt is its own row.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

const jobColumns = `file_id, name, mime_type, seq, attempt, stage, progress_fetch, progress_extract,
	candidates, conflicts, failed_stage, error, submitted_at, updated_at, finished_at`

// RecordJob archives a terminal job.
func (s *jobStore) RecordJob(ctx context.Context, job domain.IngestionJob) error {
	if !job.Stage.IsTerminal() {
		return fmt.Errorf("%w: job %s is still %s", domain.ErrInvalidInput, job.FileID, job.Stage)
	}
	conflicts, err := marshalJSON(job.Conflicts)
	if err != nil {
		return fmt.Errorf("encoding conflicts: %w", err)
	}

	finished := job.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err = s.store.db.ExecContext(ctx,
		"INSERT INTO ingestion_jobs ("+jobColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		job.FileID, job.Name, job.MIMEType, job.Seq, job.Attempt, string(job.Stage),
		job.ProgressFetch, job.ProgressExtract, job.Candidates, conflicts,
		nullString(string(job.FailedStage)), nullString(job.Error),
		formatTime(job.SubmittedAt), formatTime(job.UpdatedAt), formatTime(finished))
	if err != nil {
		return fmt.Errorf("recording job: %w", err)
	}
	return nil
}

// History returns archived jobs, most recently finished first.
func (s *jobStore) History(ctx context.Context, fileID string, limit int) ([]domain.IngestionJob, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM ingestion_jobs
		WHERE ? = '' OR file_id = ?
		ORDER BY finished_at DESC, id DESC
		LIMIT ?
	`, fileID, fileID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying job history: %w", err)
	}
	defer rows.Close()

	var jobs []domain.IngestionJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating job history: %w", err)
	}
	return jobs, nil
}

// PruneHistory removes jobs that finished before the cutoff.
func (s *jobStore) PruneHistory(ctx context.Context, before time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM ingestion_jobs WHERE finished_at < ?", before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning job history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning job history: %w", err)
	}
	return int(n), nil
}

func scanJob(row rowScanner) (domain.IngestionJob, error) {
	var job domain.IngestionJob
	var stage, conflicts string
	var failedStage, errMsg, submittedAt, updatedAt, finishedAt sql.NullString

	if err := row.Scan(&job.FileID, &job.Name, &job.MIMEType, &job.Seq, &job.Attempt, &stage,
		&job.ProgressFetch, &job.ProgressExtract, &job.Candidates, &conflicts,
		&failedStage, &errMsg, &submittedAt, &updatedAt, &finishedAt); err != nil {
		return job, fmt.Errorf("scanning job: %w", err)
	}

	var err error
	if job.Conflicts, err = unmarshalJSON[domain.Conflict](conflicts); err != nil {
		return job, fmt.Errorf("job %s conflicts: %w", job.FileID, err)
	}
	job.Stage = domain.Stage(stage)
	job.FailedStage = domain.Stage(failedStage.String)
	job.Error = errMsg.String
	job.SubmittedAt = parseTime(submittedAt)
	job.UpdatedAt = parseTime(updatedAt)
	job.FinishedAt = parseTime(finishedAt)
	return job, nil
}
