package bed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/erflow/erflow/internal/platform/events"
)

// Registry owns the bed inventory and performs atomic occupy/free/transfer/
// swap operations. A single mutex guards every mutating call for its whole
// duration, so no two bed mutations interleave; the cross-bed invariant
// "one bed per patient" is enforced here, not on the Bed entity.
type Registry struct {
	mu     sync.Mutex
	repo   Repository
	pub    events.Publisher
	logger zerolog.Logger
}

// NewRegistry constructs a Registry. A nil publisher disables change events.
func NewRegistry(repo Repository, logger zerolog.Logger, pub events.Publisher) *Registry {
	if pub == nil {
		pub = events.Nop()
	}
	return &Registry{
		repo:   repo,
		pub:    pub,
		logger: logger.With().Str("component", "bed-registry").Logger(),
	}
}

// AddBed provisions a new OPEN bed.
func (r *Registry) AddBed(ctx context.Context, bedType, section string, features []string) (*Bed, error) {
	b := NewBed(bedType, section, features)
	r.mu.Lock()
	err := r.repo.Insert(ctx, b)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("insert bed: %w", err)
	}
	r.logger.Info().Str("bed_id", b.ID.String()).Str("bed_type", bedType).Str("section", section).Msg("bed added")
	r.publish(ctx, events.BedCreated, b)
	return b.Clone(), nil
}

// ListBeds returns beds matching the filter. No defined order is promised.
func (r *Registry) ListBeds(ctx context.Context, filter Filter) ([]*Bed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.repo.List(ctx, filter)
}

// Get returns a copy of the bed record.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*Bed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.repo.GetByID(ctx, id)
}

// FreeBed marks the bed OPEN and clears its occupant. Freeing an already-open
// bed is a no-op, not an error; an unknown id is an error.
func (r *Registry) FreeBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	r.mu.Lock()
	b, err := r.repo.GetByID(ctx, id)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	changed := b.Status != StatusOpen || b.PatientID != nil
	if changed {
		b.free()
		if err := r.repo.Update(ctx, b); err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("free bed: %w", err)
		}
	}
	r.mu.Unlock()

	if changed {
		r.publish(ctx, events.BedUpdated, b)
	}
	return b.Clone(), nil
}

// HoldBed marks the bed HELD, optionally reserving it for a patient.
func (r *Registry) HoldBed(ctx context.Context, id uuid.UUID, patientID *uuid.UUID) (*Bed, error) {
	r.mu.Lock()
	b, err := r.repo.GetByID(ctx, id)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	b.Status = StatusHeld
	b.PatientID = nil
	if patientID != nil {
		pid := *patientID
		b.PatientID = &pid
	}
	if err := r.repo.Update(ctx, b); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("hold bed: %w", err)
	}
	r.mu.Unlock()

	r.publish(ctx, events.BedUpdated, b)
	return b.Clone(), nil
}

// Occupy marks the bed OCCUPIED by the patient. If the patient already
// occupies a different bed, that bed is freed first so a patient never holds
// two beds.
func (r *Registry) Occupy(ctx context.Context, bedID, patientID uuid.UUID) error {
	r.mu.Lock()
	target, err := r.repo.GetByID(ctx, bedID)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	vacated, err := r.vacateLocked(ctx, patientID, bedID)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	target.occupy(patientID)
	if err := r.repo.Update(ctx, target); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("occupy bed: %w", err)
	}
	r.mu.Unlock()

	if vacated != nil {
		r.publish(ctx, events.BedUpdated, vacated)
	}
	r.publish(ctx, events.BedUpdated, target)
	return nil
}

// FindMatch returns the first OPEN bed satisfying the constraints, or nil
// when none does. Read-only; the bed is not reserved.
func (r *Registry) FindMatch(ctx context.Context, c Constraints) (*Bed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.repo.FindOpen(ctx, c)
}

// AssignBestAvailable finds a matching OPEN bed, frees the patient's current
// bed if any, and occupies the match, all in one critical section. Returns
// nil with state unchanged when nothing matches.
func (r *Registry) AssignBestAvailable(ctx context.Context, patientID uuid.UUID, c Constraints) (*Bed, error) {
	r.mu.Lock()
	match, vacated, err := r.placeLocked(ctx, patientID, c)
	r.mu.Unlock()
	if err != nil || match == nil {
		return nil, err
	}

	if vacated != nil {
		r.publish(ctx, events.BedUpdated, vacated)
	}
	r.publish(ctx, events.BedUpdated, match)
	return match.Clone(), nil
}

// ReleasePatient frees whatever bed the patient occupies, looked up by
// occupant. Returns the freed bed id, or nil when the patient held no bed.
func (r *Registry) ReleasePatient(ctx context.Context, patientID uuid.UUID) (*uuid.UUID, error) {
	r.mu.Lock()
	freed, err := r.vacateLocked(ctx, patientID, uuid.Nil)
	r.mu.Unlock()
	if err != nil || freed == nil {
		return nil, err
	}

	r.publish(ctx, events.BedUpdated, freed)
	id := freed.ID
	return &id, nil
}

// Transfer reports the outcome of a transfer: the vacated bed (nil when the
// patient had none) and the newly occupied one.
type Transfer struct {
	FromBedID *uuid.UUID `json:"from_bed_id,omitempty"`
	ToBedID   uuid.UUID  `json:"to_bed_id"`
}

// TransferBestMatch moves the patient to the first OPEN bed matching the new
// constraints, e.g. after escalation to ICU. Returns nil with state unchanged
// when nothing matches.
func (r *Registry) TransferBestMatch(ctx context.Context, patientID uuid.UUID, c Constraints) (*Transfer, error) {
	r.mu.Lock()
	match, vacated, err := r.placeLocked(ctx, patientID, c)
	r.mu.Unlock()
	if err != nil || match == nil {
		return nil, err
	}

	t := &Transfer{ToBedID: match.ID}
	if vacated != nil {
		id := vacated.ID
		t.FromBedID = &id
		r.publish(ctx, events.BedUpdated, vacated)
	}
	r.publish(ctx, events.BedUpdated, match)
	return t, nil
}

// Swap exchanges the occupants of two beds in one critical section. Both beds
// must be OCCUPIED. Returns the occupants as they were before the swap.
func (r *Registry) Swap(ctx context.Context, bedA, bedB uuid.UUID) (patientA, patientB *uuid.UUID, err error) {
	r.mu.Lock()
	a, err := r.repo.GetByID(ctx, bedA)
	if err != nil {
		r.mu.Unlock()
		return nil, nil, err
	}
	b, err := r.repo.GetByID(ctx, bedB)
	if err != nil {
		r.mu.Unlock()
		return nil, nil, err
	}
	if a.Status != StatusOccupied || a.PatientID == nil {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotOccupied, a.ID)
	}
	if b.Status != StatusOccupied || b.PatientID == nil {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotOccupied, b.ID)
	}

	patientA, patientB = a.PatientID, b.PatientID
	a.PatientID, b.PatientID = patientB, patientA
	if err := r.repo.Update(ctx, a); err != nil {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("swap bed %s: %w", a.ID, err)
	}
	if err := r.repo.Update(ctx, b); err != nil {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("swap bed %s: %w", b.ID, err)
	}
	r.mu.Unlock()

	r.publish(ctx, events.BedUpdated, a)
	r.publish(ctx, events.BedUpdated, b)
	return patientA, patientB, nil
}

// placeLocked finds a match and moves the patient onto it. Returns the match
// and the vacated bed, both nil-safe. Callers hold r.mu.
func (r *Registry) placeLocked(ctx context.Context, patientID uuid.UUID, c Constraints) (match, vacated *Bed, err error) {
	match, err = r.repo.FindOpen(ctx, c)
	if err != nil || match == nil {
		return nil, nil, err
	}
	vacated, err = r.vacateLocked(ctx, patientID, match.ID)
	if err != nil {
		return nil, nil, err
	}
	match.occupy(patientID)
	if err := r.repo.Update(ctx, match); err != nil {
		return nil, nil, fmt.Errorf("occupy bed: %w", err)
	}
	return match, vacated, nil
}

// vacateLocked frees the bed the patient currently occupies, unless it is the
// bed identified by except. Callers hold r.mu.
func (r *Registry) vacateLocked(ctx context.Context, patientID, except uuid.UUID) (*Bed, error) {
	current, err := r.repo.GetByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if current.ID == except {
		return nil, nil
	}
	current.free()
	if err := r.repo.Update(ctx, current); err != nil {
		return nil, fmt.Errorf("free previous bed: %w", err)
	}
	return current, nil
}

func (r *Registry) publish(ctx context.Context, eventType string, b *Bed) {
	_ = r.pub.Publish(ctx, events.New(eventType, events.TopicBeds, b.ID.String(), b))
}
