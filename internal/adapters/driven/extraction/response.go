// Package extraction holds what the extraction adapters share: the JSON
// contract the prompts ask for, its translation into raw candidates, and
// prompt loading with embedded defaults.
//
// Provider adapters live in subpackages (openai, gemini, ollama). Decorators that
// wrap any driven.Extractor live in cache and ratelimit.
package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/clinitrace/internal/adapters/driven/config/file"
	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// DefaultConfidence is used when the model omits a confidence score.
const DefaultConfidence = 0.5

// LabKeyword tags the events made from laboratory results.
const LabKeyword = "exame laboratorial"

// Response is the JSON object every extraction prompt asks for.
type Response struct {
	Events      []EventFact      `json:"events"`
	Medications []MedicationFact `json:"medications"`
	LabReports  []LabReport      `json:"lab_reports"`
}

// EventFact is one dated clinical event as returned by the model.
type EventFact struct {
	Date        string   `json:"date"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Notes       string   `json:"notes"`
	Keywords    []string `json:"keywords"`
	Excerpt     string   `json:"excerpt"`
	Confidence  *float64 `json:"confidence"`
}

// MedicationFact is one medication course as returned by the model.
type MedicationFact struct {
	Name             string   `json:"name"`
	ActiveIngredient string   `json:"active_ingredient"`
	Dosage           string   `json:"dosage"`
	Route            string   `json:"route"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	Notes            string   `json:"notes"`
	Excerpt          string   `json:"excerpt"`
	Confidence       *float64 `json:"confidence"`
}

// LabReport is one laboratory report: a date and the tests measured on it.
type LabReport struct {
	ExamDate   string    `json:"exam_date"`
	LabName    string    `json:"lab_name"`
	DoctorName string    `json:"doctor_name"`
	Tests      []LabTest `json:"tests"`
	Confidence *float64  `json:"confidence"`
}

// LabTest is one measured value. Value is whatever the report shows;
// models return numbers or strings.
type LabTest struct {
	Name           string          `json:"test_name"`
	Value          json.RawMessage `json:"value"`
	Unit           string          `json:"unit"`
	ReferenceRange string          `json:"reference_range"`
}

// ParseResponse decodes a model reply into raw candidates, events first.
// Replies wrapped in a Markdown code fence are accepted.
func ParseResponse(body string) ([]domain.RawCandidate, error) {
	var resp Response
	if err := json.Unmarshal([]byte(StripFence(body)), &resp); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}
	return resp.Candidates(), nil
}

// Candidates converts the response into raw candidates. Values are passed
// through as the model gave them; validation belongs to the reconciler.
func (r Response) Candidates() []domain.RawCandidate {
	out := make([]domain.RawCandidate, 0, len(r.Events)+len(r.Medications))

	for _, e := range r.Events {
		out = append(out, domain.RawCandidate{
			Kind:          domain.FactEvent,
			TextSpan:      e.Excerpt,
			CandidateDate: e.Date,
			Fields: map[string]string{
				domain.FieldTitle:       e.Title,
				domain.FieldDescription: e.Description,
				domain.FieldNotes:       e.Notes,
				domain.FieldKeywords:    strings.Join(e.Keywords, ","),
			},
			Confidence: confidence(e.Confidence),
		})
	}

	for _, lab := range r.LabReports {
		out = append(out, lab.Candidates()...)
	}

	for _, m := range r.Medications {
		out = append(out, domain.RawCandidate{
			Kind:          domain.FactMedication,
			TextSpan:      m.Excerpt,
			CandidateDate: m.StartDate,
			Fields: map[string]string{
				domain.FieldName:             m.Name,
				domain.FieldActiveIngredient: m.ActiveIngredient,
				domain.FieldDosage:           m.Dosage,
				domain.FieldRoute:            m.Route,
				domain.FieldStartDate:        m.StartDate,
				domain.FieldEndDate:          m.EndDate,
				domain.FieldNotes:            m.Notes,
			},
			Confidence: confidence(m.Confidence),
		})
	}

	return out
}

// Candidates turns every test of the report into a dated event titled
// with the test name, so repeated measurements line up on the timeline.
func (l LabReport) Candidates() []domain.RawCandidate {
	keywords := []string{LabKeyword}
	if l.LabName != "" {
		keywords = append(keywords, l.LabName)
	}
	var notes string
	if l.DoctorName != "" {
		notes = "Solicitante: " + l.DoctorName
	}

	out := make([]domain.RawCandidate, 0, len(l.Tests))
	for _, t := range l.Tests {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		out = append(out, domain.RawCandidate{
			Kind:          domain.FactEvent,
			TextSpan:      l.ExamDate,
			CandidateDate: l.ExamDate,
			Fields: map[string]string{
				domain.FieldTitle:       name,
				domain.FieldDescription: t.Describe(),
				domain.FieldNotes:       notes,
				domain.FieldKeywords:    strings.Join(keywords, ","),
			},
			Confidence: confidence(l.Confidence),
		})
	}
	return out
}

// Describe renders the result as "12.5 g/dL (referência: 12-16)".
func (t LabTest) Describe() string {
	desc := t.ValueText()
	if unit := strings.TrimSpace(t.Unit); unit != "" && desc != "" {
		desc += " " + unit
	}
	if ref := strings.TrimSpace(t.ReferenceRange); ref != "" {
		desc = strings.TrimSpace(desc + " (referência: " + ref + ")")
	}
	return desc
}

// ValueText returns the value as shown, whether the model sent a number
// or a string.
func (t LabTest) ValueText() string {
	raw := strings.TrimSpace(string(t.Value))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(t.Value, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return raw
}

func confidence(c *float64) float64 {
	if c == nil {
		return DefaultConfidence
	}
	return *c
}

// ParseCleanup decodes the {"text": ...} reply of the cleanup prompt. A
// reply that is not JSON is taken as the cleaned text itself.
func ParseCleanup(body string) string {
	body = StripFence(body)
	var resp struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil || resp.Text == nil {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(*resp.Text)
}

// Ingredient is the reply of the ingredient prompt.
type Ingredient struct {
	ValidatedName    string `json:"validated_name"`
	ActiveIngredient string `json:"active_ingredient"`
	IsValid          bool   `json:"is_valid"`
}

// ParseIngredient decodes the ingredient reply. An unrecognised name
// yields "".
func ParseIngredient(body string) (string, error) {
	var resp Ingredient
	if err := json.Unmarshal([]byte(StripFence(body)), &resp); err != nil {
		return "", fmt.Errorf("decode ingredient response: %w", err)
	}
	if !resp.IsValid {
		return "", nil
	}
	return strings.TrimSpace(resp.ActiveIngredient), nil
}

// StripFence removes a surrounding ```json ... ``` fence.
func StripFence(body string) string {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "```") {
		return body
	}
	body = strings.TrimPrefix(body, "```")
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(body), "```"))
}

// Prompts loads prompt templates, falling back to the embedded defaults
// when no store is configured.
type Prompts struct {
	Store driven.PromptStore
}

// Load returns the template for name.
func (p Prompts) Load(name string) (string, error) {
	if p.Store != nil {
		return p.Store.Load(name)
	}
	if prompt, ok := file.DefaultPrompt(name); ok {
		return prompt, nil
	}
	return "", fmt.Errorf("unknown prompt %q", name)
}

// Render loads a single-placeholder template and puts text where its %s
// is. Templates are user-editable, so one with no placeholder or several
// is an error rather than a garbled prompt.
func (p Prompts) Render(name, text string) (string, error) {
	tmpl, err := p.Load(name)
	if err != nil {
		return "", err
	}
	if n := strings.Count(tmpl, "%s"); n != 1 {
		return "", fmt.Errorf("prompt %q: want one %%s placeholder, found %d", name, n)
	}
	return strings.Replace(tmpl, "%s", text, 1), nil
}

// PromptFor picks the extraction prompt for a MIME type: transcripts of
// audio and video use the medication prompt, everything else the clinical
// document prompt.
func PromptFor(mimeType string) string {
	switch domain.KindOfMIME(mimeType) {
	case domain.MediaAudio, domain.MediaVideo:
		return driven.PromptMedicationExtract
	default:
		return driven.PromptClinicalExtract
	}
}
