package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	return m.output, m.err
}

func rawPDF() *domain.RawDocument {
	return &domain.RawDocument{
		FileID:   "exam-1",
		Name:     "hemograma.pdf",
		MIMEType: "application/pdf",
		Content:  []byte("%PDF-1.4 fake pdf content"),
	}
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{"application/pdf"}, New().SupportedMIMETypes())
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_WithMockRunner(t *testing.T) {
	runner := &mockRunner{
		output: []byte("Hemograma   10/01/2023\nLeucócitos  12.000   \n\fPágina 2\n\f"),
	}

	result, err := NewWithRunner(runner).Normalise(context.Background(), rawPDF())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Hemograma   10/01/2023\nLeucócitos  12.000\n\nPágina 2", result.Text)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, "pdftotext", runner.name)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8"}, runner.args[:3])
	assert.Equal(t, "-", runner.args[len(runner.args)-1])
}

func TestNormalise_RunnerError(t *testing.T) {
	runner := &mockRunner{err: errors.New("pdftotext crashed")}

	result, err := NewWithRunner(runner).Normalise(context.Background(), rawPDF())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
	assert.Nil(t, result)
}

func TestNormalise_ToolMissing(t *testing.T) {
	runner := &mockRunner{err: ErrPDFToolNotFound}

	_, err := NewWithRunner(runner).Normalise(context.Background(), rawPDF())

	assert.ErrorIs(t, err, ErrPDFToolNotFound)
}

func TestParseOutput_ImageOnlyPDF(t *testing.T) {
	result := parseOutput("\f\f")

	assert.Empty(t, result.Text)
	assert.Equal(t, 2, result.Pages)
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}

func TestErrPDFToolNotFound(t *testing.T) {
	assert.Contains(t, ErrPDFToolNotFound.Error(), "pdftotext")
}

// Integration test - only runs if pdftotext is available.
func TestNormalise_Integration(t *testing.T) {
	if err := CheckAvailable(); err != nil {
		t.Skip("pdftotext not available, skipping integration test")
	}
	t.Skip("integration test requires sample PDF file")
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
