package patient

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// memoryRepo is a map-backed Repository. It keeps insertion order so listings
// enumerate deterministically.
type memoryRepo struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*Patient
	order []uuid.UUID
}

// NewMemoryRepo returns an in-memory Repository.
func NewMemoryRepo() Repository {
	return &memoryRepo{byID: make(map[uuid.UUID]*Patient)}
}

func (r *memoryRepo) Insert(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.byID[p.ID] = p.Clone()
	return nil
}

func (r *memoryRepo) Update(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		return ErrNotFound
	}
	r.byID[p.ID] = p.Clone()
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Patient
	for _, id := range r.order {
		p := r.byID[id]
		if filter.Department != "" && p.Department != filter.Department {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p.Clone())
	}
	return out, nil
}

func (r *memoryRepo) ListActive(_ context.Context, department string) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Patient
	for _, id := range r.order {
		p := r.byID[id]
		if p.Status.Terminal() {
			continue
		}
		if department != "" && p.Department != department {
			continue
		}
		out = append(out, p.Clone())
	}
	return out, nil
}
