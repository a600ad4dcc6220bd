package bed

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// memoryRepo is a map-backed Repository. Insertion order is preserved so
// FindOpen enumerates deterministically.
type memoryRepo struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*Bed
	order []uuid.UUID
}

// NewMemoryRepo returns an in-memory Repository.
func NewMemoryRepo() Repository {
	return &memoryRepo{byID: make(map[uuid.UUID]*Bed)}
}

func (r *memoryRepo) Insert(_ context.Context, b *Bed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[b.ID]; !exists {
		r.order = append(r.order, b.ID)
	}
	r.byID[b.ID] = b.Clone()
	return nil
}

func (r *memoryRepo) Update(_ context.Context, b *Bed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[b.ID]; !ok {
		return ErrNotFound
	}
	r.byID[b.ID] = b.Clone()
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Bed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

func (r *memoryRepo) GetByPatient(_ context.Context, patientID uuid.UUID) (*Bed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		b := r.byID[id]
		if b.PatientID != nil && *b.PatientID == patientID {
			return b.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) List(_ context.Context, filter Filter) ([]*Bed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Bed
	for _, id := range r.order {
		b := r.byID[id]
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.BedType != "" && b.BedType != filter.BedType {
			continue
		}
		if filter.Section != "" && b.Section != filter.Section {
			continue
		}
		out = append(out, b.Clone())
	}
	return out, nil
}

func (r *memoryRepo) FindOpen(_ context.Context, c Constraints) (*Bed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		b := r.byID[id]
		if b.Status != StatusOpen {
			continue
		}
		if c.BedType != "" && b.BedType != c.BedType {
			continue
		}
		if c.Section != "" && b.Section != c.Section {
			continue
		}
		if !b.HasFeatures(c.Features) {
			continue
		}
		return b.Clone(), nil
	}
	return nil, nil
}
