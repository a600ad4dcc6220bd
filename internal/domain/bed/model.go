package bed

import (
	"errors"
	"sort"

	"github.com/google/uuid"
)

// Status is the occupancy state of a bed.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusHeld     Status = "HELD"
	StatusOccupied Status = "OCCUPIED"
)

// Valid reports whether s is a member of the bed status enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusHeld, StatusOccupied:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when a bed id is unknown.
	ErrNotFound = errors.New("bed not found")
	// ErrNotOccupied is returned when an operation requires an occupied bed.
	ErrNotOccupied = errors.New("bed is not occupied")
)

// Bed is a physical care location. BedType is the capability class (ED, ICU,
// OR, ...), Section the physical zone, Features an unordered set of capability
// tags such as "ventilator" or "negative_pressure".
type Bed struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	BedType   string     `db:"bed_type" json:"bed_type"`
	Section   string     `db:"section" json:"section"`
	Features  []string   `db:"features" json:"features"`
	Status    Status     `db:"status" json:"status"`
	PatientID *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
}

// NewBed creates an OPEN bed with a normalized (sorted, deduplicated)
// feature set.
func NewBed(bedType, section string, features []string) *Bed {
	return &Bed{
		ID:       uuid.New(),
		BedType:  bedType,
		Section:  section,
		Features: normalizeFeatures(features),
		Status:   StatusOpen,
	}
}

// Clone returns a deep copy so callers never hold live internal references.
func (b *Bed) Clone() *Bed {
	cp := *b
	if b.PatientID != nil {
		id := *b.PatientID
		cp.PatientID = &id
	}
	cp.Features = append([]string(nil), b.Features...)
	return &cp
}

// HasFeatures reports whether required is a subset of the bed's feature set.
// An empty requirement always matches.
func (b *Bed) HasFeatures(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(b.Features))
	for _, f := range b.Features {
		have[f] = struct{}{}
	}
	for _, f := range required {
		if _, ok := have[f]; !ok {
			return false
		}
	}
	return true
}

// free resets the bed to OPEN with no occupant.
func (b *Bed) free() {
	b.Status = StatusOpen
	b.PatientID = nil
}

// occupy marks the bed OCCUPIED by the given patient.
func (b *Bed) occupy(patientID uuid.UUID) {
	id := patientID
	b.Status = StatusOccupied
	b.PatientID = &id
}

func normalizeFeatures(features []string) []string {
	seen := make(map[string]struct{}, len(features))
	out := make([]string, 0, len(features))
	for _, f := range features {
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
