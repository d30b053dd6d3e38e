package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// createTestDOCX creates a minimal valid DOCX file in memory.
func createTestDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))
	require.NoError(t, err)

	if documentXML != "" {
		doc, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = doc.Write([]byte(documentXML))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func wrapBody(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>` + body + `</w:body>
</w:document>`
}

func normalise(t *testing.T, content []byte) (*driven.NormaliseResult, error) {
	t.Helper()
	return New().Normalise(context.Background(), &domain.RawDocument{
		FileID:   "letter-1",
		Name:     "encaminhamento.docx",
		MIMEType: docxMIME,
		Content:  content,
	})
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{docxMIME}, New().SupportedMIMETypes())
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_MultipleParagraphs(t *testing.T) {
	content := createTestDOCX(t, wrapBody(`
<w:p><w:r><w:t>Encaminhamento</w:t></w:r></w:p>
<w:p><w:r><w:t>Paciente em uso de voriconazol desde 20/01/2023.</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Dra. Silva</w:t></w:r></w:p>`))

	result, err := normalise(t, content)
	require.NoError(t, err)

	assert.Equal(t, "Encaminhamento\nPaciente em uso de voriconazol desde 20/01/2023.\nDra. Silva", result.Text)
}

func TestNormalise_MultipleRuns(t *testing.T) {
	content := createTestDOCX(t, wrapBody(`
<w:p>
<w:r><w:t xml:space="preserve">Prednisona </w:t></w:r>
<w:r><w:rPr><w:b/></w:rPr><w:t>20mg</w:t></w:r>
</w:p>`))

	result, err := normalise(t, content)
	require.NoError(t, err)

	assert.Equal(t, "Prednisona 20mg", result.Text)
}

func TestNormalise_TableRows(t *testing.T) {
	content := createTestDOCX(t, wrapBody(`
<w:p><w:r><w:t>Resultados</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Creatinina</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>1,1 mg/dL</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>Ureia</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>32 mg/dL</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:r><w:t>Fim</w:t></w:r></w:p>`))

	result, err := normalise(t, content)
	require.NoError(t, err)

	assert.Equal(t, "Resultados\nCreatinina 1,1 mg/dL\nUreia 32 mg/dL\nFim", result.Text)
}

func TestNormalise_LineBreak(t *testing.T) {
	content := createTestDOCX(t, wrapBody(`<w:p><w:r><w:t>Linha 1</w:t><w:br/><w:t>Linha 2</w:t></w:r></w:p>`))

	result, err := normalise(t, content)
	require.NoError(t, err)

	assert.Equal(t, "Linha 1\nLinha 2", result.Text)
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_InvalidZip(t *testing.T) {
	_, err := normalise(t, []byte("not a zip file"))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_InvalidXML(t *testing.T) {
	_, err := normalise(t, createTestDOCX(t, "<w:document><w:body>"))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_NoDocumentPart(t *testing.T) {
	result, err := normalise(t, createTestDOCX(t, ""))

	require.NoError(t, err)
	assert.Empty(t, result.Text)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
