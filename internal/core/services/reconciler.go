package services

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// DefaultSimilarityThreshold is the minimum similarity for two same-day
// events to be treated as the same fact.
const DefaultSimilarityThreshold = 0.8

// factNamespace scopes the name-based UUIDs of extracted facts.
var factNamespace = uuid.MustParse("0c6d3f5e-2b1a-4c8e-9f47-5d2a8e61b3c9")

// FactID derives a stable identifier for the index-th fact of a
// submission. The same input always yields the same ID, whatever order
// submissions are reconciled in.
func FactID(kind domain.FactKind, sourceFile string, seq int64, index int) string {
	name := fmt.Sprintf("%s|%s|%d|%d", kind, sourceFile, seq, index)
	return uuid.NewSHA1(factNamespace, []byte(name)).String()
}

// Reconciler merges candidate facts into the canonical collections.
// It is a pure function of its inputs; callers serialize access to the
// collections it updates.
type Reconciler struct {
	matcher   driven.TextMatcher
	threshold float64
}

// NewReconciler creates a reconciler. A threshold outside (0,1] falls
// back to DefaultSimilarityThreshold.
func NewReconciler(matcher driven.TextMatcher, threshold float64) *Reconciler {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Reconciler{matcher: matcher, threshold: threshold}
}

// Threshold returns the event similarity threshold in use.
func (r *Reconciler) Threshold() float64 {
	return r.threshold
}

// Reconcile merges candidates into existing and returns the updated record
// with the non-fatal conflicts found along the way.
//
// The existing record is validated first; any violation is fatal and
// returned as a *domain.CorruptStateError with no partial result.
// Malformed candidates are dropped and reported as conflicts.
// With no candidates the record is returned unchanged.
func (r *Reconciler) Reconcile(existing domain.Record, candidates []domain.Candidate) (domain.Record, []domain.Conflict, error) {
	if err := existing.Validate(); err != nil {
		return domain.Record{}, nil, fmt.Errorf("reconcile: %w", err)
	}
	if len(candidates) == 0 {
		return existing.Clone(), nil, nil
	}

	ordered := slices.Clone(candidates)
	slices.SortStableFunc(ordered, compareCandidates)

	rec := existing.Clone()
	var conflicts []domain.Conflict
	for _, c := range ordered {
		if conflict, ok := checkCandidate(c); !ok {
			conflicts = append(conflicts, conflict)
			continue
		}
		switch c.Kind {
		case domain.FactEvent:
			r.mergeEvent(&rec, c)
		case domain.FactMedication:
			conflicts = append(conflicts, mergeMedication(&rec, c)...)
		}
	}

	AssignCycles(rec.Medications)
	SortRecord(&rec)

	if err := rec.Validate(); err != nil {
		return domain.Record{}, nil, fmt.Errorf("reconcile result: %w", err)
	}
	return rec, conflicts, nil
}

func compareCandidates(a, b domain.Candidate) int {
	return cmp.Or(
		cmp.Compare(a.Seq, b.Seq),
		cmp.Compare(a.SourceFile, b.SourceFile),
		cmp.Compare(a.Index, b.Index),
	)
}

// checkCandidate rejects candidates that cannot become valid records.
func checkCandidate(c domain.Candidate) (domain.Conflict, bool) {
	conflict := domain.Conflict{SourceFile: c.SourceFile, Index: c.Index}
	if c.Date.IsZero() {
		conflict.Kind = domain.ConflictUnanchoredFact
		conflict.Detail = "no resolvable date"
		return conflict, false
	}

	conflict.Kind = domain.ConflictMalformedFact
	switch {
	case c.Confidence < 0 || c.Confidence > 1:
		conflict.Detail = fmt.Sprintf("confidence %.3f outside [0,1]", c.Confidence)
	case c.Kind == domain.FactEvent && strings.TrimSpace(c.Title+c.Description) == "":
		conflict.Detail = "event without title or description"
	case c.Kind == domain.FactMedication && strings.TrimSpace(c.Name+c.ActiveIngredient) == "":
		conflict.Detail = "medication without name or ingredient"
	case c.Kind == domain.FactMedication && !c.EndDate.IsZero() && c.EndDate.Before(c.Date):
		conflict.Detail = fmt.Sprintf("course ends %s before it starts %s", c.EndDate, c.Date)
	case c.Kind != domain.FactEvent && c.Kind != domain.FactMedication:
		conflict.Detail = fmt.Sprintf("unknown kind %q", c.Kind)
	default:
		return domain.Conflict{}, true
	}
	return conflict, false
}

func candidateID(c domain.Candidate) string {
	if c.ID != "" {
		return c.ID
	}
	return FactID(c.Kind, c.SourceFile, c.Seq, c.Index)
}

func provenanceOf(c domain.Candidate) domain.Provenance {
	if c.Provenance.IsValid() {
		return c.Provenance
	}
	return domain.ProvenanceMachine
}

// ==================== Events ====================

func eventFromCandidate(c domain.Candidate) domain.MedicalEvent {
	return domain.MedicalEvent{
		ID:          candidateID(c),
		Date:        c.Date,
		Title:       strings.TrimSpace(c.Title),
		Description: strings.TrimSpace(c.Description),
		Notes:       strings.TrimSpace(c.Notes),
		Keywords:    domain.UnionSorted(nil, c.Keywords),
		SourceFiles: domain.UnionSorted(nil, []string{c.SourceFile}),
		Confidence:  c.Confidence,
		Provenance:  provenanceOf(c),
		IngestSeq:   c.Seq,

		NoteArtifactID: c.NoteArtifactID,
	}
}

// eventBeats reports whether a should carry the merged narrative over b:
// higher confidence, then earliest ingested, then lowest ID.
func eventBeats(a, b domain.MedicalEvent) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.IngestSeq != b.IngestSeq {
		return a.IngestSeq < b.IngestSeq
	}
	return a.ID < b.ID
}

// mergeEvent adds the candidate and regroups its date. Same-day events
// form clusters by connected components of the similarity relation over
// each event's own text, so the grouping depends only on the set of facts
// and never on the order they arrived in.
func (r *Reconciler) mergeEvent(rec *domain.Record, c domain.Candidate) {
	incoming := eventFromCandidate(c)
	if _, seen := rec.Event(incoming.ID); seen {
		return
	}
	rec.Events = append(rec.Events, incoming)

	var idx []int
	var own []domain.MedicalEvent
	for i, e := range rec.Events {
		if e.Date == incoming.Date {
			o := e.Original()
			o.SupersededBy = ""
			idx = append(idx, i)
			own = append(own, o)
		}
	}

	members := r.eventComponent(own, len(own)-1)
	if len(members) == 1 {
		return
	}

	cluster := make([]domain.MedicalEvent, 0, len(members))
	for _, n := range members {
		cluster = append(cluster, own[n])
	}
	merged := foldEvents(cluster)
	for _, n := range members {
		e := own[n]
		if e.ID == merged.ID {
			e = merged
		} else {
			e.SupersededBy = merged.ID
		}
		rec.Events[idx[n]] = e
	}
}

// eventComponent returns the positions of every event reachable from
// start through pairs at or above the similarity threshold.
func (r *Reconciler) eventComponent(events []domain.MedicalEvent, start int) []int {
	texts := make([]string, len(events))
	for i, e := range events {
		texts[i] = e.SimilarityText()
	}

	seen := make([]bool, len(events))
	seen[start] = true
	out := []int{start}
	for next := 0; next < len(out); next++ {
		cur := out[next]
		for j := range events {
			if !seen[j] && r.similar(texts[cur], texts[j]) {
				seen[j] = true
				out = append(out, j)
			}
		}
	}
	slices.Sort(out)
	return out
}

func (r *Reconciler) similar(a, b string) bool {
	return r.matcher.Similarity(a, b) >= r.threshold || r.matcher.Similarity(b, a) >= r.threshold
}

// foldEvents merges a cluster into its strongest event. The winner keeps
// its narrative; keywords and sources are unioned.
func foldEvents(cluster []domain.MedicalEvent) domain.MedicalEvent {
	winner := cluster[0]
	for _, e := range cluster[1:] {
		if eventBeats(e, winner) {
			winner = e
		}
	}

	merged := winner.Clone()
	merged.Own = winner.Facts()
	merged.Provenance = domain.ProvenanceMerged
	var notes []string
	for _, e := range cluster {
		merged.Keywords = domain.UnionSorted(merged.Keywords, e.Keywords)
		merged.SourceFiles = domain.UnionSorted(merged.SourceFiles, e.SourceFiles)
		if e.NoteArtifactID != "" {
			notes = append(notes, e.NoteArtifactID)
		}
	}
	if merged.NoteArtifactID == "" && len(notes) > 0 {
		merged.NoteArtifactID = slices.Min(notes)
	}
	return merged
}

// ==================== Medications ====================

func medicationFromCandidate(c domain.Candidate) domain.Medication {
	return domain.Medication{
		ID:               candidateID(c),
		Name:             strings.TrimSpace(c.Name),
		ActiveIngredient: strings.TrimSpace(c.ActiveIngredient),
		Period:           c.Period(),
		Dosage:           strings.TrimSpace(c.Dosage),
		Route:            strings.TrimSpace(c.Route),
		Notes:            strings.TrimSpace(c.Notes),
		SourceFiles:      domain.UnionSorted(nil, []string{c.SourceFile}),
		Confidence:       c.Confidence,
		Provenance:       provenanceOf(c),
		IngestSeq:        c.Seq,
	}
}

// medicationBeats reports whether a should absorb b: the strictly wider
// range wins; equal ranges fall back to confidence, then earliest
// ingested, then lowest ID.
func medicationBeats(a, b domain.Medication) bool {
	aWider := a.Period.Contains(b.Period)
	bWider := b.Period.Contains(a.Period)
	if aWider != bWider {
		return aWider
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.IngestSeq != b.IngestSeq {
		return a.IngestSeq < b.IngestSeq
	}
	return a.ID < b.ID
}

// specificity orders courses from the most specific (shortest closed
// range) to the least.
func specificity(a, b domain.Medication) int {
	return cmp.Or(cmp.Compare(spanDays(a), spanDays(b)), cmp.Compare(a.IngestSeq, b.IngestSeq), cmp.Compare(a.ID, b.ID))
}

// spanDays is the course length; open courses sort last.
func spanDays(m domain.Medication) int {
	if d := m.Period.Days(); d >= 0 {
		return d
	}
	return int(^uint(0) >> 1)
}

// mergeMedication adds the candidate and regroups its ingredient. The
// conflicts returned are the partial overlaps the candidate introduces as
// a new active course.
func mergeMedication(rec *domain.Record, c domain.Candidate) []domain.Conflict {
	incoming := medicationFromCandidate(c)
	if _, seen := rec.Medication(incoming.ID); seen {
		return nil
	}
	rec.Medications = append(rec.Medications, incoming)

	key := incoming.IngredientKey()
	regroupCourses(rec, key)

	merged, _ := rec.Medication(incoming.ID)
	if !merged.Active() {
		return nil
	}
	var conflicts []domain.Conflict
	for _, m := range rec.Medications {
		if !m.Active() || m.ID == merged.ID || m.IngredientKey() != key {
			continue
		}
		if partialOverlap(m, merged) {
			conflicts = append(conflicts, overlapConflict(merged, m, c.SourceFile, c.Index))
		}
	}
	return conflicts
}

// regroupCourses rebuilds the merge forest of one ingredient from each
// course's own facts. A course's parent is the tightest course that
// contains it and beats it; every tree folds into its root. Two courses
// that only partially overlap never share a parent chain unless a third
// course contains both, so they stay apart. Courses archived, or absorbed
// by an archived course, are left as they are.
func regroupCourses(rec *domain.Record, key string) {
	var idx []int
	var own []domain.Medication
	for i, m := range rec.Medications {
		if retired(*rec, m) {
			continue
		}
		o := m.Original()
		if o.IngredientKey() != key {
			continue
		}
		o.SupersededBy = ""
		idx = append(idx, i)
		own = append(own, o)
	}

	parent := make([]int, len(own))
	for i := range own {
		parent[i] = -1
		for j := range own {
			if i == j || !own[j].Period.Contains(own[i].Period) || !medicationBeats(own[j], own[i]) {
				continue
			}
			if parent[i] < 0 || tighter(own[j], own[parent[i]]) {
				parent[i] = j
			}
		}
	}

	trees := make(map[int][]int)
	for i := range own {
		root := i
		for parent[root] >= 0 {
			root = parent[root]
		}
		trees[root] = append(trees[root], i)
	}

	for root, members := range trees {
		if len(members) == 1 {
			rec.Medications[idx[root]] = own[root]
			continue
		}
		cluster := make([]domain.Medication, 0, len(members))
		for _, n := range members {
			cluster = append(cluster, own[n])
		}
		merged := foldCourses(own[root], cluster)
		for _, n := range members {
			m := own[n]
			if n == root {
				m = merged
			} else {
				m.SupersededBy = merged.ID
			}
			rec.Medications[idx[n]] = m
		}
	}
}

// retired reports whether a course is archived or was absorbed by an
// archived course.
func retired(rec domain.Record, m domain.Medication) bool {
	for range len(rec.Medications) + 1 {
		if m.Archived {
			return true
		}
		if m.SupersededBy == "" {
			return false
		}
		next, ok := rec.Medication(m.SupersededBy)
		if !ok {
			return false
		}
		m = next
	}
	return false
}

// tighter orders candidate parents: the shortest range first, then the
// earliest start, then the course that would win a merge.
func tighter(a, b domain.Medication) bool {
	if c := cmp.Or(cmp.Compare(spanDays(a), spanDays(b)), a.Period.Start.Compare(b.Period.Start)); c != 0 {
		return c < 0
	}
	return medicationBeats(a, b)
}

// foldCourses merges a cluster of courses into root, which contains all
// of them. Dosage and route come from the most specific course that has
// them.
func foldCourses(root domain.Medication, cluster []domain.Medication) domain.Medication {
	merged := root.Clone()
	merged.Own = root.Facts()
	merged.Provenance = domain.ProvenanceMerged

	bySpecificity := slices.Clone(cluster)
	slices.SortFunc(bySpecificity, specificity)
	merged.Dosage = firstNonEmpty(bySpecificity, func(m domain.Medication) string { return m.Dosage })
	merged.Route = firstNonEmpty(bySpecificity, func(m domain.Medication) string { return m.Route })
	if merged.Name == "" {
		merged.Name = firstNonEmpty(bySpecificity, func(m domain.Medication) string { return m.Name })
	}
	if merged.ActiveIngredient == "" {
		merged.ActiveIngredient = firstNonEmpty(bySpecificity, func(m domain.Medication) string { return m.ActiveIngredient })
	}

	var notes []string
	for _, m := range cluster {
		merged.SourceFiles = domain.UnionSorted(merged.SourceFiles, m.SourceFiles)
		notes = domain.UnionSorted(notes, splitNotes(m.Notes))
	}
	merged.Notes = strings.Join(notes, "; ")
	return merged
}

func firstNonEmpty(meds []domain.Medication, field func(domain.Medication) string) string {
	for _, m := range meds {
		if v := field(m); v != "" {
			return v
		}
	}
	return ""
}

func splitNotes(notes string) []string {
	if notes == "" {
		return nil
	}
	return strings.Split(notes, "; ")
}

func partialOverlap(a, b domain.Medication) bool {
	return a.Period.Overlaps(b.Period) && !a.Period.Contains(b.Period) && !b.Period.Contains(a.Period)
}

func overlapConflict(a, b domain.Medication, sourceFile string, index int) domain.Conflict {
	ids := []string{a.ID, b.ID}
	slices.Sort(ids)
	return domain.Conflict{
		Kind:       domain.ConflictOverlappingCourse,
		SourceFile: sourceFile,
		Index:      index,
		RecordIDs:  ids,
		Detail: fmt.Sprintf("%s %s overlaps %s",
			a.DisplayName(), a.Period, b.Period),
	}
}

// OverlappingCourses lists every pair of active same-ingredient courses
// that partially overlap. These need manual resolution.
func OverlappingCourses(rec domain.Record) []domain.Conflict {
	active := rec.ActiveMedications()
	slices.SortFunc(active, compareMedications)
	var out []domain.Conflict
	for i := range active {
		for j := i + 1; j < len(active); j++ {
			if active[i].IngredientKey() != active[j].IngredientKey() {
				break
			}
			if partialOverlap(active[i], active[j]) {
				out = append(out, overlapConflict(active[i], active[j], "", 0))
			}
		}
	}
	return out
}

// ==================== Cycles and ordering ====================

// AssignCycles groups active courses of each ingredient into cycles: a run
// of overlapping or adjacent ranges shares one cycle ID, a gap of at least
// one day starts the next. Inactive courses carry no cycle.
func AssignCycles(meds []domain.Medication) {
	byKey := make(map[string][]int)
	for i := range meds {
		meds[i].CycleID = ""
		if meds[i].Active() {
			key := meds[i].IngredientKey()
			byKey[key] = append(byKey[key], i)
		}
	}

	for key, idx := range byKey {
		slices.SortFunc(idx, func(a, b int) int {
			return compareMedications(meds[a], meds[b])
		})
		slug := slugify(key)
		cycle := 0
		var end domain.Date
		open := false
		for n, i := range idx {
			p := meds[i].Period
			if n == 0 || (!open && end.AddDays(1).Before(p.Start)) {
				cycle++
				end, open = p.End, p.IsOpen()
			} else if p.IsOpen() {
				open = true
			} else if !open && p.End.After(end) {
				end = p.End
			}
			meds[i].CycleID = slug + "-" + strconv.Itoa(cycle)
		}
	}
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func compareEvents(a, b domain.MedicalEvent) int {
	return cmp.Or(a.Date.Compare(b.Date), cmp.Compare(a.IngestSeq, b.IngestSeq), cmp.Compare(a.ID, b.ID))
}

func compareMedications(a, b domain.Medication) int {
	return cmp.Or(
		cmp.Compare(a.IngredientKey(), b.IngredientKey()),
		a.Period.Start.Compare(b.Period.Start),
		cmp.Compare(a.ID, b.ID),
	)
}

// SortRecord puts both collections in canonical order so records built
// from the same facts compare equal.
func SortRecord(rec *domain.Record) {
	slices.SortFunc(rec.Events, compareEvents)
	slices.SortFunc(rec.Medications, compareMedications)
}
