// Package html reduces HTML reports (discharge summaries, lab portal
// exports) to plain text. Table rows stay on one line with their cells
// separated by " | ", so result columns survive for extraction.
package html
