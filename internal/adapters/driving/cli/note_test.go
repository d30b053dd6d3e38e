package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

func TestNoteList(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "note")

	require.NoError(t, err)
	assert.Contains(t, out, "note-1")
	assert.Contains(t, out, "draft")
	assert.Contains(t, out, "Paciente lucido e orientado.")
}

func TestNoteShow(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "note", "show", "note-1")

	require.NoError(t, err)
	assert.Contains(t, out, "Note note-1 (draft, version 1)")
	assert.Contains(t, out, "Paciente lucido e orientado.")
	assert.Contains(t, out, "created")
}

func TestNoteShow_NotFound(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "note", "show", "note-404")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNoteEdit(t *testing.T) {
	env := setupTestServices(t)

	// "lucido" spans runes 9..15.
	out, err := execute(t, "note", "edit", "note-1",
		"--start", "9", "--end", "15", "--text", "lúcido", "--author", "dra.ana")

	require.NoError(t, err)
	assert.Contains(t, out, "Note note-1 updated (version 2)")

	note, err := env.editor.Get(context.Background(), "note-1")
	require.NoError(t, err)
	assert.Equal(t, "Paciente lúcido e orientado.", note.Text())

	out, err = execute(t, "note", "show", "note-1", "--markers")
	require.NoError(t, err)
	assert.Contains(t, out, "Paciente [dra.ana: lúcido] e orientado.")
}

func TestNoteEdit_OutOfRange(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "note", "edit", "note-1", "--start", "5", "--end", "500", "--text", "x", "--author", "a")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNoteApprove(t *testing.T) {
	env := setupTestServices(t)

	out, err := execute(t, "note", "approve", "note-1", "--author", "dra.ana")

	require.NoError(t, err)
	assert.Contains(t, out, "Note note-1 approved")
	note, err := env.editor.Get(context.Background(), "note-1")
	require.NoError(t, err)
	assert.True(t, note.Approved)
}

func TestNoteReprocess_RequiresYes(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "note", "reprocess", "note-1")

	require.ErrorIs(t, err, domain.ErrConfirmationRequired)
	assert.Contains(t, err.Error(), "rerun with --yes")
}

func TestNoteReprocess_WithoutExtractor(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "note", "reprocess", "note-1", "--yes")

	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestAuthorOrDefault(t *testing.T) {
	assert.Equal(t, "dra.ana", authorOrDefault("  dra.ana "))
	assert.NotEmpty(t, authorOrDefault(""))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Linha um", firstLine("Linha um\nLinha dois"))
	assert.Equal(t, "única", firstLine("única"))
}
