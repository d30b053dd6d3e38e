package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// CellSeparator joins the cells of a table row.
const CellSeparator = " | "

// cellMark stands in for a cell boundary until lines are rebuilt.
const cellMark = "\x1f"

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise strips markup from an HTML report. The page title, when
// present and not repeated in the body, becomes the first line.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	page := string(raw.Content)
	title := extractHTMLTitle(page)
	text := stripHTML(page)

	if title != "" && !strings.HasPrefix(text, title) {
		text = title + "\n" + text
	}

	return &driven.NormaliseResult{Text: strings.TrimSpace(text)}, nil
}

var (
	titleTag = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

	// dropped elements lose their content too.
	dropped = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
		regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`),
		regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`),
		titleTag,
		regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`),
		regexp.MustCompile(`(?s)<!--.*?-->`),
	}

	lineBreaks = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|li|tr|blockquote|pre|table|thead|tbody|section|article)\b[^>]*>|<(br|hr)\s*/?>`)
	cellEnd    = regexp.MustCompile(`(?i)</t[dh]>`)
	anyTag     = regexp.MustCompile(`<[^>]+>`)
	blanks     = regexp.MustCompile(`[ \t\r]+`)
)

// extractHTMLTitle returns the decoded <title> text, or "" when absent.
func extractHTMLTitle(content string) string {
	m := titleTag.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}

// stripHTML returns the readable text of content, one block per line.
func stripHTML(content string) string {
	for _, re := range dropped {
		content = re.ReplaceAllString(content, "")
	}

	content = lineBreaks.ReplaceAllString(content, "\n")
	content = cellEnd.ReplaceAllString(content, cellMark)
	content = anyTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = blanks.ReplaceAllString(content, " ")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if line = joinCells(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// joinCells trims a line and rebuilds its table cells, skipping empty ones.
func joinCells(line string) string {
	if !strings.Contains(line, cellMark) {
		return strings.TrimSpace(line)
	}
	var cells []string
	for _, cell := range strings.Split(line, cellMark) {
		if cell = strings.TrimSpace(cell); cell != "" {
			cells = append(cells, cell)
		}
	}
	return strings.Join(cells, CellSeparator)
}
