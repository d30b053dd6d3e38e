package services

import (
	"context"
	"strings"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/logger"
)

// noteArtifactPrefix prefixes the IDs of artifacts created from the
// narrative notes of extracted events.
const noteArtifactPrefix = "note-"

// NoteArtifactID returns the artifact ID holding the notes of a fact.
func NoteArtifactID(factID string) string {
	return noteArtifactPrefix + factID
}

// CandidateBuilder anchors raw extractor output to canonical dates and,
// given a resolver, medication names to their active ingredient.
type CandidateBuilder struct {
	dates       driven.DateNormaliser
	ingredients driven.IngredientResolver
}

// NewCandidateBuilder creates a builder over a date normaliser. The
// ingredient resolver is optional.
func NewCandidateBuilder(dates driven.DateNormaliser, ingredients driven.IngredientResolver) *CandidateBuilder {
	return &CandidateBuilder{dates: dates, ingredients: ingredients}
}

// Build converts the raw facts of one submission. Facts without a
// resolvable date keep a zero date; the reconciler reports them.
// With notes set, events carrying notes get a NoteArtifactID.
func (b *CandidateBuilder) Build(fileID string, seq int64, raws []domain.RawCandidate, notes bool) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(raws))
	for i, raw := range raws {
		c := domain.Candidate{
			Kind:        raw.Kind,
			SourceFile:  fileID,
			Seq:         seq,
			Index:       i,
			Notes:       raw.Field(domain.FieldNotes),
			Confidence:  raw.Confidence,
			Provenance:  domain.ProvenanceMachine,
			Title:       raw.Field(domain.FieldTitle),
			Description: raw.Field(domain.FieldDescription),
			Keywords:    splitKeywords(raw.Field(domain.FieldKeywords)),
		}

		switch raw.Kind {
		case domain.FactEvent:
			c.Date = b.first(raw.CandidateDate, raw.TextSpan)
			if notes && c.Notes != "" {
				c.NoteArtifactID = NoteArtifactID(FactID(c.Kind, fileID, seq, i))
			}
		case domain.FactMedication:
			c.Name = raw.Field(domain.FieldName)
			c.ActiveIngredient = raw.Field(domain.FieldActiveIngredient)
			c.Dosage = raw.Field(domain.FieldDosage)
			c.Route = raw.Field(domain.FieldRoute)
			c.Date = b.first(raw.Field(domain.FieldStartDate), raw.CandidateDate)
			// An end date that cannot be read leaves the course ongoing.
			c.EndDate = b.first(raw.Field(domain.FieldEndDate))
		}
		out = append(out, c)
	}
	return out
}

// ResolveIngredients sets the active ingredient of medication candidates
// from the resolver, asking about the extracted ingredient or, without
// one, the name. Names the resolver cannot place keep what the extractor
// said.
func (b *CandidateBuilder) ResolveIngredients(ctx context.Context, candidates []domain.Candidate) {
	if b.ingredients == nil {
		return
	}
	for i := range candidates {
		c := &candidates[i]
		if c.Kind != domain.FactMedication {
			continue
		}
		name := c.ActiveIngredient
		if strings.TrimSpace(name) == "" {
			name = c.Name
		}
		if strings.TrimSpace(name) == "" {
			continue
		}

		ingredient, err := b.ingredients.ResolveIngredient(ctx, name)
		if err != nil {
			logger.Warn("ingredient of %q not resolved: %v", name, err)
			continue
		}
		if ingredient != "" {
			c.ActiveIngredient = ingredient
		}
	}
}

// first returns the earliest date of the first text that has one.
func (b *CandidateBuilder) first(texts ...string) domain.Date {
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		for d := range b.dates.Normalise(text) {
			return d
		}
	}
	return domain.Date{}
}

func splitKeywords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})
	return domain.UnionSorted(nil, fields)
}
