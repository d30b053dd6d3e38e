// Package normalisers provides implementations of the Normaliser interface
// for the document formats patients upload. Each normaliser knows how to
// extract plain text from specific MIME types, for extractors that only
// read text.
//
// Normalisers are registered with a Registry at startup.
package normalisers
