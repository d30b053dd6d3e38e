package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// ==================== State Store ====================

// stateStore implements driven.StateStore over the medical_events and
// medications tables.
type stateStore struct {
	store *Store
}

var _ driven.StateStore = (*stateStore)(nil)

const (
	eventColumns = `id, event_date, title, description, notes, keywords, source_files,
		confidence, provenance, ingest_seq, superseded_by, note_artifact_id, own_facts`
	medicationColumns = `id, name, active_ingredient, start_date, end_date, dosage, route, notes,
		cycle_id, source_files, confidence, provenance, ingest_seq, archived, superseded_by, own_facts`
)

// LoadState reads the whole record. An empty database yields an empty record.
func (s *stateStore) LoadState(ctx context.Context) (domain.Record, error) {
	var rec domain.Record

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM medical_events ORDER BY event_date, ingest_seq, id")
	if err != nil {
		return domain.Record{}, fmt.Errorf("querying events: %w", err)
	}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return domain.Record{}, err
		}
		rec.Events = append(rec.Events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Record{}, fmt.Errorf("iterating events: %w", err)
	}

	rows, err = s.store.db.QueryContext(ctx,
		"SELECT "+medicationColumns+" FROM medications ORDER BY start_date, id")
	if err != nil {
		return domain.Record{}, fmt.Errorf("querying medications: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return domain.Record{}, err
		}
		rec.Medications = append(rec.Medications, m)
	}
	if err := rows.Err(); err != nil {
		return domain.Record{}, fmt.Errorf("iterating medications: %w", err)
	}

	return rec, nil
}

// SaveState replaces both collections in one transaction.
func (s *stateStore) SaveState(ctx context.Context, rec domain.Record) error {
	err := s.store.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM medical_events"); err != nil {
			return fmt.Errorf("clearing events: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM medications"); err != nil {
			return fmt.Errorf("clearing medications: %w", err)
		}

		insertEvent, err := tx.PrepareContext(ctx,
			"INSERT INTO medical_events ("+eventColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("preparing event insert: %w", err)
		}
		defer insertEvent.Close()
		for _, e := range rec.Events {
			if err := execEvent(ctx, insertEvent, e); err != nil {
				return err
			}
		}

		insertMed, err := tx.PrepareContext(ctx,
			"INSERT INTO medications ("+medicationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("preparing medication insert: %w", err)
		}
		defer insertMed.Close()
		for _, m := range rec.Medications {
			if err := execMedication(ctx, insertMed, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving record: %w", err)
	}
	return nil
}

func execEvent(ctx context.Context, stmt *sql.Stmt, e domain.MedicalEvent) error {
	keywords, err := marshalJSON(e.Keywords)
	if err != nil {
		return fmt.Errorf("encoding keywords of %s: %w", e.ID, err)
	}
	sources, err := marshalJSON(e.SourceFiles)
	if err != nil {
		return fmt.Errorf("encoding sources of %s: %w", e.ID, err)
	}
	own, err := marshalOwn(e.Own)
	if err != nil {
		return fmt.Errorf("encoding own facts of %s: %w", e.ID, err)
	}
	_, err = stmt.ExecContext(ctx,
		e.ID, e.Date.String(), e.Title, e.Description, e.Notes, keywords, sources,
		e.Confidence, string(e.Provenance), e.IngestSeq,
		nullString(e.SupersededBy), nullString(e.NoteArtifactID), own)
	if err != nil {
		return fmt.Errorf("inserting event %s: %w", e.ID, err)
	}
	return nil
}

func execMedication(ctx context.Context, stmt *sql.Stmt, m domain.Medication) error {
	sources, err := marshalJSON(m.SourceFiles)
	if err != nil {
		return fmt.Errorf("encoding sources of %s: %w", m.ID, err)
	}
	own, err := marshalOwn(m.Own)
	if err != nil {
		return fmt.Errorf("encoding own facts of %s: %w", m.ID, err)
	}
	_, err = stmt.ExecContext(ctx,
		m.ID, m.Name, m.ActiveIngredient, m.Period.Start.String(), nullString(m.Period.End.String()),
		m.Dosage, m.Route, m.Notes, m.CycleID, sources,
		m.Confidence, string(m.Provenance), m.IngestSeq, boolToInt(m.Archived), nullString(m.SupersededBy), own)
	if err != nil {
		return fmt.Errorf("inserting medication %s: %w", m.ID, err)
	}
	return nil
}

func scanEvent(row rowScanner) (domain.MedicalEvent, error) {
	var e domain.MedicalEvent
	var date, keywords, sources, provenance string
	var supersededBy, noteID, own sql.NullString

	if err := row.Scan(&e.ID, &date, &e.Title, &e.Description, &e.Notes, &keywords, &sources,
		&e.Confidence, &provenance, &e.IngestSeq, &supersededBy, &noteID, &own); err != nil {
		return e, fmt.Errorf("scanning event: %w", err)
	}

	var err error
	if e.Date, err = domain.ParseDate(date); err != nil {
		return e, fmt.Errorf("event %s: %w", e.ID, err)
	}
	if e.Keywords, err = unmarshalJSON[string](keywords); err != nil {
		return e, fmt.Errorf("event %s keywords: %w", e.ID, err)
	}
	if e.SourceFiles, err = unmarshalJSON[string](sources); err != nil {
		return e, fmt.Errorf("event %s sources: %w", e.ID, err)
	}
	e.Provenance = domain.Provenance(provenance)
	e.SupersededBy = supersededBy.String
	e.NoteArtifactID = noteID.String
	if e.Own, err = unmarshalOwn[domain.EventFacts](own); err != nil {
		return e, fmt.Errorf("event %s own facts: %w", e.ID, err)
	}
	return e, nil
}

func scanMedication(row rowScanner) (domain.Medication, error) {
	var m domain.Medication
	var start, sources, provenance string
	var end, supersededBy, own sql.NullString
	var archived int

	if err := row.Scan(&m.ID, &m.Name, &m.ActiveIngredient, &start, &end, &m.Dosage, &m.Route,
		&m.Notes, &m.CycleID, &sources, &m.Confidence, &provenance, &m.IngestSeq,
		&archived, &supersededBy, &own); err != nil {
		return m, fmt.Errorf("scanning medication: %w", err)
	}

	var err error
	if m.Period.Start, err = domain.ParseDate(start); err != nil {
		return m, fmt.Errorf("medication %s start: %w", m.ID, err)
	}
	if end.Valid {
		if m.Period.End, err = domain.ParseDate(end.String); err != nil {
			return m, fmt.Errorf("medication %s end: %w", m.ID, err)
		}
	}
	if m.SourceFiles, err = unmarshalJSON[string](sources); err != nil {
		return m, fmt.Errorf("medication %s sources: %w", m.ID, err)
	}
	m.Provenance = domain.Provenance(provenance)
	m.Archived = archived == 1
	m.SupersededBy = supersededBy.String
	if m.Own, err = unmarshalOwn[domain.CourseFacts](own); err != nil {
		return m, fmt.Errorf("medication %s own facts: %w", m.ID, err)
	}
	return m, nil
}

// marshalOwn encodes a merge snapshot; nil stores NULL.
func marshalOwn[T any](own *T) (any, error) {
	if own == nil {
		return nil, nil
	}
	b, err := json.Marshal(own)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalOwn[T any](col sql.NullString) (*T, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal([]byte(col.String), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
