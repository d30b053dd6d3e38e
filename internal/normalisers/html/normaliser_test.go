package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	assert.Contains(t, mimeTypes, "text/html")
	assert.Contains(t, mimeTypes, "application/xhtml+xml")
	assert.Len(t, mimeTypes, 2)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		FileID:   "exam-1",
		Name:     "alta.html",
		MIMEType: "text/html",
		Content:  []byte("<html><head><title>Resumo de Alta</title></head><body><p>Internação 03/02/2023</p></body></html>"),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Resumo de Alta\nInternação 03/02/2023", result.Text)
}

func TestNormalise_TitleRepeatedInBody(t *testing.T) {
	raw := &domain.RawDocument{
		MIMEType: "text/html",
		Content:  []byte("<title>Hemograma</title><h1>Hemograma</h1><p>Leucócitos 12.000</p>"),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "Hemograma\nLeucócitos 12.000", result.Text)
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_EmptyContent(t *testing.T) {
	result, err := New().Normalise(context.Background(), &domain.RawDocument{MIMEType: "text/html"})

	require.NoError(t, err)
	assert.Empty(t, result.Text)
}

func TestExtractHTMLTitle(t *testing.T) {
	assert.Equal(t, "Laudo & Exames", extractHTMLTitle("<TITLE> Laudo &amp; Exames </TITLE>"))
	assert.Empty(t, extractHTMLTitle("<p>no title</p>"))
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple paragraph",
			input:    "<p>Hello World</p>",
			expected: "Hello World",
		},
		{
			name:     "nested tags",
			input:    "<div><p><strong>Bold</strong> text</p></div>",
			expected: "Bold text",
		},
		{
			name:     "script removed",
			input:    "<p>Before</p><script>alert('evil');</script><p>After</p>",
			expected: "Before\nAfter",
		},
		{
			name:     "style removed",
			input:    "<style>.foo { color: red; }</style><p>Content</p>",
			expected: "Content",
		},
		{
			name:     "noscript removed",
			input:    "<p>Content</p><noscript>No JS fallback</noscript>",
			expected: "Content",
		},
		{
			name:     "head removed",
			input:    "<head><meta charset='utf-8'><title>Title</title></head><body>Content</body>",
			expected: "Content",
		},
		{
			name:     "br to newline",
			input:    "Line 1<br>Line 2<br/>Line 3",
			expected: "Line 1\nLine 2\nLine 3",
		},
		{
			name:     "block elements create newlines",
			input:    "<div>Block 1</div><div>Block 2</div>",
			expected: "Block 1\nBlock 2",
		},
		{
			name:     "HTML entities decoded",
			input:    "<p>&lt;tag&gt; &amp; &quot;quotes&quot;</p>",
			expected: "<tag> & \"quotes\"",
		},
		{
			name:     "comments removed",
			input:    "<p>Before</p><!-- comment --><p>After</p>",
			expected: "Before\nAfter",
		},
		{
			name:     "list items",
			input:    "<ul><li>Item 1</li><li>Item 2</li></ul>",
			expected: "Item 1\nItem 2",
		},
		{
			name:     "headings",
			input:    "<h1>Title</h1><h2>Subtitle</h2><p>Content</p>",
			expected: "Title\nSubtitle\nContent",
		},
		{
			name:     "links - text preserved",
			input:    `<a href="https://example.com">Click here</a>`,
			expected: "Click here",
		},
		{
			name:     "images removed",
			input:    `<p>See <img src="image.png" alt="Image"> here</p>`,
			expected: "See here",
		},
		{
			name:     "table",
			input:    "<table><tr><td>Cell 1</td><td>Cell 2</td></tr></table>",
			expected: "Cell 1 | Cell 2",
		},
		{
			name:     "empty cells skipped",
			input:    "<tr><td>PCR</td><td></td><td>4,2 mg/L</td></tr>",
			expected: "PCR | 4,2 mg/L",
		},
		{
			name:     "svg removed",
			input:    `<p>Before</p><svg width="100"><circle cx="50"/></svg><p>After</p>`,
			expected: "Before\nAfter",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := stripHTML(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestNormalise_LabTable(t *testing.T) {
	raw := &domain.RawDocument{
		MIMEType: "text/html",
		Content: []byte(`<body>
<h2>Bioquímica &ndash; 10/01/2023</h2>
<table>
  <tr><th>Exame</th><th>Resultado</th></tr>
  <tr><td>Creatinina</td><td>1,1 mg/dL</td></tr>
  <tr><td>Ureia</td><td>32 mg/dL</td></tr>
</table>
<script>track()</script>
</body>`),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "Bioquímica – 10/01/2023\nExame | Resultado\nCreatinina | 1,1 mg/dL\nUreia | 32 mg/dL", result.Text)
	assert.NotContains(t, result.Text, "track")
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
