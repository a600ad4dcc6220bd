package bed

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows a List call. Zero values mean "any".
type Filter struct {
	Status  Status
	BedType string
	Section string
}

// Constraints describe what a placement request needs from a bed. Zero-value
// fields are unconstrained; Features must be an exact subset of the bed's
// feature set (no soft matching).
type Constraints struct {
	BedType  string   `json:"bed_type,omitempty"`
	Section  string   `json:"section,omitempty"`
	Features []string `json:"features,omitempty"`
}

// Repository is the storage backend for the bed inventory.
type Repository interface {
	Insert(ctx context.Context, b *Bed) error
	Update(ctx context.Context, b *Bed) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bed, error)
	// GetByPatient returns the bed the patient occupies, or ErrNotFound.
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*Bed, error)
	List(ctx context.Context, filter Filter) ([]*Bed, error)
	// FindOpen returns the first OPEN bed matching the constraints in
	// enumeration order, or nil when none matches. No scoring or ranking.
	FindOpen(ctx context.Context, c Constraints) (*Bed, error)
}
