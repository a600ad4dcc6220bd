package patient

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a List call. Zero values mean "any".
type ListFilter struct {
	Department string
	Status     Status
}

// Repository is the storage backend for patient records. The scheduler works
// against this interface; the in-memory implementation is the reference, the
// Postgres implementation mirrors it.
type Repository interface {
	Insert(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, filter ListFilter) ([]*Patient, error)
	// ListActive returns patients whose status is not terminal, optionally
	// restricted to a department.
	ListActive(ctx context.Context, department string) ([]*Patient, error)
}
