package domain

import "strings"

// Record holds the canonical collections for one subject.
type Record struct {
	Events      []MedicalEvent
	Medications []Medication
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := Record{
		Events:      make([]MedicalEvent, len(r.Events)),
		Medications: make([]Medication, len(r.Medications)),
	}
	for i, e := range r.Events {
		out.Events[i] = e.Clone()
	}
	for i, m := range r.Medications {
		out.Medications[i] = m.Clone()
	}
	return out
}

// ActiveEvents returns events that have not been superseded.
func (r Record) ActiveEvents() []MedicalEvent {
	out := make([]MedicalEvent, 0, len(r.Events))
	for _, e := range r.Events {
		if e.Active() {
			out = append(out, e)
		}
	}
	return out
}

// ActiveMedications returns courses that are neither superseded nor archived.
func (r Record) ActiveMedications() []Medication {
	out := make([]Medication, 0, len(r.Medications))
	for _, m := range r.Medications {
		if m.Active() {
			out = append(out, m)
		}
	}
	return out
}

// Event looks up an event by ID.
func (r Record) Event(id string) (MedicalEvent, bool) {
	for _, e := range r.Events {
		if e.ID == id {
			return e, true
		}
	}
	return MedicalEvent{}, false
}

// Medication looks up a course by ID.
func (r Record) Medication(id string) (Medication, bool) {
	for _, m := range r.Medications {
		if m.ID == id {
			return m, true
		}
	}
	return Medication{}, false
}

// Validate checks every invariant of the stored collections. The first
// violation is returned as a *CorruptStateError.
func (r Record) Validate() error {
	eventIDs := make(map[string]struct{}, len(r.Events))
	for _, e := range r.Events {
		if err := e.Validate(); err != nil {
			return corrupt(e.ID, err)
		}
		if _, dup := eventIDs[e.ID]; dup {
			return &CorruptStateError{RecordID: e.ID, Reason: "duplicate event id"}
		}
		eventIDs[e.ID] = struct{}{}
	}
	for _, e := range r.Events {
		if e.SupersededBy == "" {
			continue
		}
		if _, ok := eventIDs[e.SupersededBy]; !ok {
			return &CorruptStateError{RecordID: e.ID, Reason: "superseded by unknown event " + e.SupersededBy}
		}
	}

	medIDs := make(map[string]struct{}, len(r.Medications))
	for _, m := range r.Medications {
		if err := m.Validate(); err != nil {
			return corrupt(m.ID, err)
		}
		if _, dup := medIDs[m.ID]; dup {
			return &CorruptStateError{RecordID: m.ID, Reason: "duplicate medication id"}
		}
		medIDs[m.ID] = struct{}{}
	}
	for _, m := range r.Medications {
		if m.SupersededBy == "" {
			continue
		}
		if _, ok := medIDs[m.SupersededBy]; !ok {
			return &CorruptStateError{RecordID: m.ID, Reason: "superseded by unknown medication " + m.SupersededBy}
		}
	}
	return nil
}

func corrupt(id string, err error) error {
	reason := strings.Replace(err.Error(), ErrInvalidInput.Error()+": ", "", 1)
	return &CorruptStateError{RecordID: id, Reason: reason}
}
