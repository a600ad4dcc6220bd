package patient

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/erflow/erflow/internal/platform/events"
)

// delayThresholds maps acuity to the maximum acceptable time in the current
// status before a patient counts as delayed.
var delayThresholds = map[int]time.Duration{
	1: 0,
	2: 10 * time.Minute,
	3: 30 * time.Minute,
	4: 60 * time.Minute,
	5: 120 * time.Minute,
}

const defaultDelayThreshold = 30 * time.Minute

// DelayThreshold returns the wait threshold for an acuity level.
func DelayThreshold(acuity int) time.Duration {
	if d, ok := delayThresholds[acuity]; ok {
		return d
	}
	return defaultDelayThreshold
}

// Scheduler owns the patient collection for one department and derives a
// deterministic triage ordering from it. One mutex guards the whole instance;
// the ordering index is rebuilt from a full scan on every mutation, which is
// the correctness-over-efficiency choice adequate at ED scale.
type Scheduler struct {
	mu         sync.Mutex
	repo       Repository
	department string
	seq        int64
	queue      []uuid.UUID // AWAITING_TRIAGE ids in triage order; may lag reality
	pub        events.Publisher
	logger     zerolog.Logger
	now        func() time.Time
}

// NewScheduler constructs a Scheduler for the given department partition.
// A nil publisher disables change events.
func NewScheduler(repo Repository, department string, logger zerolog.Logger, pub events.Publisher) *Scheduler {
	if pub == nil {
		pub = events.Nop()
	}
	return &Scheduler{
		repo:       repo,
		department: department,
		pub:        pub,
		logger:     logger.With().Str("component", "scheduler").Str("department", department).Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Department returns the scheduler's partition.
func (s *Scheduler) Department() string { return s.department }

// LoadState primes the sequence counter and the ordering index from records
// already in the repository. Call once at startup when the repository is
// persistent; a fresh in-memory repository needs no priming.
func (s *Scheduler) LoadState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	patients, err := s.repo.List(ctx, ListFilter{Department: s.department})
	if err != nil {
		return fmt.Errorf("load patients: %w", err)
	}
	for _, p := range patients {
		if p.Seq > s.seq {
			s.seq = p.Seq
		}
	}
	s.rebuildLocked(ctx)
	return nil
}

// RegisterInput carries the fields for a new registration.
type RegisterInput struct {
	Name           string `json:"name"`
	Acuity         int    `json:"acuity"`
	ChiefComplaint string `json:"chief_complaint"`
	Age            int    `json:"age"`
	Gender         string `json:"gender"`
	Notes          string `json:"notes"`
}

// Register creates a patient in AWAITING_TRIAGE and inserts them into the
// triage ordering.
func (s *Scheduler) Register(ctx context.Context, in RegisterInput) (*Patient, error) {
	if in.Acuity < MinAcuity || in.Acuity > MaxAcuity {
		return nil, fmt.Errorf("%w: got %d", ErrAcuityRange, in.Acuity)
	}

	s.mu.Lock()
	now := s.now()
	s.seq++
	p := &Patient{
		ID:             uuid.New(),
		Name:           in.Name,
		Acuity:         in.Acuity,
		ChiefComplaint: in.ChiefComplaint,
		Age:            in.Age,
		Gender:         in.Gender,
		Department:     s.department,
		Notes:          in.Notes,
		ArrivalTime:    now,
		LastAssessedAt: now,
		Seq:            s.seq,
	}
	p.EnterStatus(StatusAwaitingTriage, now)
	if err := s.repo.Insert(ctx, p); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	s.rebuildLocked(ctx)
	out := p.Clone()
	s.mu.Unlock()

	s.logger.Info().Str("patient_id", out.ID.String()).Int("acuity", out.Acuity).Msg("patient registered")
	_ = s.pub.Publish(ctx, events.New(events.PatientCreated, events.TopicPatients, out.ID.String(), out))
	return out, nil
}

// Get returns a copy of the patient record.
func (s *Scheduler) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.GetByID(ctx, id)
}

// UpdateAcuity changes a patient's acuity and recomputes the ordering.
func (s *Scheduler) UpdateAcuity(ctx context.Context, id uuid.UUID, acuity int) (*Patient, error) {
	if acuity < MinAcuity || acuity > MaxAcuity {
		return nil, fmt.Errorf("%w: got %d", ErrAcuityRange, acuity)
	}
	out, err := s.mutate(ctx, id, func(p *Patient, now time.Time) {
		p.Acuity = acuity
		p.LastAssessedAt = now
	})
	if err != nil {
		return nil, err
	}
	_ = s.pub.Publish(ctx, events.New(events.PatientUpdated, events.TopicPatients, out.ID.String(), out))
	return out, nil
}

// UpdateStatus records the new status and the time it was entered. Re-entering
// a previously visited status resets that status's clock. Transition legality
// is not checked; only enumeration membership is.
func (s *Scheduler) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Patient, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	out, err := s.mutate(ctx, id, func(p *Patient, now time.Time) {
		p.EnterStatus(status, now)
		p.LastAssessedAt = now
	})
	if err != nil {
		return nil, err
	}
	_ = s.pub.Publish(ctx, events.New(events.PatientUpdated, events.TopicPatients, out.ID.String(), out))
	return out, nil
}

// AssignBed records the bed on the patient and moves them to IN_BED. This is
// pure patient-side state; the bed registry is updated separately by the
// caller, which must retry the missing half on partial failure.
func (s *Scheduler) AssignBed(ctx context.Context, id, bedID uuid.UUID) (*Patient, error) {
	out, err := s.mutate(ctx, id, func(p *Patient, now time.Time) {
		b := bedID
		p.BedID = &b
		p.EnterStatus(StatusInBed, now)
		p.LastAssessedAt = now
	})
	if err != nil {
		return nil, err
	}
	_ = s.pub.Publish(ctx, events.New(events.PatientUpdated, events.TopicPatients, out.ID.String(), out))
	return out, nil
}

// AssignStaff records the nurse and/or physician on the patient record.
// Staff assignments are informational and never affect ordering.
func (s *Scheduler) AssignStaff(ctx context.Context, id uuid.UUID, nurseID, physicianID *uuid.UUID) (*Patient, error) {
	out, err := s.mutate(ctx, id, func(p *Patient, now time.Time) {
		if nurseID != nil {
			n := *nurseID
			p.AssignedNurseID = &n
		}
		if physicianID != nil {
			ph := *physicianID
			p.AssignedPhysicianID = &ph
		}
		p.LastAssessedAt = now
	})
	if err != nil {
		return nil, err
	}
	_ = s.pub.Publish(ctx, events.New(events.PatientUpdated, events.TopicPatients, out.ID.String(), out))
	return out, nil
}

// SetTriageNotes replaces the triage notes on the record.
func (s *Scheduler) SetTriageNotes(ctx context.Context, id uuid.UUID, notes string) (*Patient, error) {
	out, err := s.mutate(ctx, id, func(p *Patient, now time.Time) {
		p.TriageNotes = notes
		p.LastAssessedAt = now
	})
	if err != nil {
		return nil, err
	}
	_ = s.pub.Publish(ctx, events.New(events.PatientUpdated, events.TopicPatients, out.ID.String(), out))
	return out, nil
}

// mutate applies fn to the stored patient under the lock, persists it, and
// rebuilds the ordering index.
func (s *Scheduler) mutate(ctx context.Context, id uuid.UUID, fn func(p *Patient, now time.Time)) (*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(p, s.now())
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	s.rebuildLocked(ctx)
	return p.Clone(), nil
}

// NextAwaitingTriage returns the highest-priority AWAITING_TRIAGE patient
// without mutating state, or nil when the queue is empty.
func (s *Scheduler) NextAwaitingTriage(ctx context.Context) (*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.queue {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			// The index may lag reality between rebuilds; skip stale ids.
			continue
		}
		if p.Status == StatusAwaitingTriage && p.Department == s.department {
			return p, nil
		}
	}
	return nil, nil
}

// TriageQueue returns the AWAITING_TRIAGE patients in triage order.
func (s *Scheduler) TriageQueue(ctx context.Context) ([]*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eligibleOrderedLocked(ctx)
}

// ActivePatients returns every non-terminal patient in this department,
// sorted by the triage ordering key.
func (s *Scheduler) ActivePatients(ctx context.Context) ([]*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	patients, err := s.repo.ListActive(ctx, s.department)
	if err != nil {
		return nil, err
	}
	sortByTriageKey(patients)
	return patients, nil
}

// PatientsByStatus returns this department's patients in the given status,
// sorted by the triage ordering key.
func (s *Scheduler) PatientsByStatus(ctx context.Context, status Status) ([]*Patient, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	patients, err := s.repo.List(ctx, ListFilter{Department: s.department, Status: status})
	if err != nil {
		return nil, err
	}
	sortByTriageKey(patients)
	return patients, nil
}

// DelayedPatients returns active patients that have been in their current
// status longer than their acuity's threshold.
func (s *Scheduler) DelayedPatients(ctx context.Context) ([]*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	patients, err := s.repo.ListActive(ctx, s.department)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var delayed []*Patient
	for _, p := range patients {
		if now.Sub(p.CurrentStatusSince()) > DelayThreshold(p.Acuity) {
			delayed = append(delayed, p)
		}
	}
	sortByTriageKey(delayed)
	return delayed, nil
}

// EstimateWaitMinutes estimates how long the patient will wait for triage:
// floor(people_ahead * avgServiceMinutes / roomsAvailable). Both parameters
// are clamped to at least 1. A patient not currently in the triage queue
// waits 0 minutes by definition.
func (s *Scheduler) EstimateWaitMinutes(ctx context.Context, id uuid.UUID, roomsAvailable, avgServiceMinutes int) (int, error) {
	if roomsAvailable < 1 {
		roomsAvailable = 1
	}
	if avgServiceMinutes < 1 {
		avgServiceMinutes = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if p.Status != StatusAwaitingTriage || p.Department != s.department {
		return 0, nil
	}
	queue, err := s.eligibleOrderedLocked(ctx)
	if err != nil {
		return 0, err
	}
	ahead := 0
	for _, q := range queue {
		if q.ID == id {
			break
		}
		ahead++
	}
	return ahead * avgServiceMinutes / roomsAvailable, nil
}

// eligibleOrderedLocked scans for queue members and sorts them. Callers hold s.mu.
func (s *Scheduler) eligibleOrderedLocked(ctx context.Context) ([]*Patient, error) {
	patients, err := s.repo.List(ctx, ListFilter{Department: s.department, Status: StatusAwaitingTriage})
	if err != nil {
		return nil, err
	}
	sortByTriageKey(patients)
	return patients, nil
}

// rebuildLocked recomputes the ordering index from a full scan. Lookup
// failures here are swallowed; the queue is allowed to lag between rebuilds.
func (s *Scheduler) rebuildLocked(ctx context.Context) {
	patients, err := s.eligibleOrderedLocked(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("rebuild triage index")
		return
	}
	s.queue = s.queue[:0]
	for _, p := range patients {
		s.queue = append(s.queue, p.ID)
	}
}

func sortByTriageKey(patients []*Patient) {
	sort.SliceStable(patients, func(i, j int) bool {
		return patients[i].Less(patients[j])
	})
}
