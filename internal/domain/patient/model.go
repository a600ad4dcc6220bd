package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the workflow state of a patient. The enumeration is closed but
// transition legality is deliberately not enforced: the ordering logic depends
// only on the current status, and tightening transitions would reject flows
// the floor actually uses (e.g. sending a patient back to triage).
type Status string

const (
	StatusRegistered           Status = "REGISTERED"
	StatusAwaitingTriage       Status = "AWAITING_TRIAGE"
	StatusTriaged              Status = "TRIAGED"
	StatusAwaitingBed          Status = "AWAITING_BED"
	StatusInBed                Status = "IN_BED"
	StatusAwaitingDisposition  Status = "AWAITING_DISPOSITION"
	StatusDischarged           Status = "DISCHARGED"
	StatusAdmitted             Status = "ADMITTED"
	StatusLeftWithoutBeingSeen Status = "LEFT_WITHOUT_BEING_SEEN"
)

// AllStatuses lists every member of the status enumeration.
var AllStatuses = []Status{
	StatusRegistered,
	StatusAwaitingTriage,
	StatusTriaged,
	StatusAwaitingBed,
	StatusInBed,
	StatusAwaitingDisposition,
	StatusDischarged,
	StatusAdmitted,
	StatusLeftWithoutBeingSeen,
}

// Valid reports whether s is a member of the status enumeration.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the patient's visit. Terminal records are
// retained for audit, never deleted.
func (s Status) Terminal() bool {
	switch s {
	case StatusDischarged, StatusAdmitted, StatusLeftWithoutBeingSeen:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when a patient id is unknown.
	ErrNotFound = errors.New("patient not found")
	// ErrAcuityRange is returned when an acuity level is outside 1..5.
	ErrAcuityRange = errors.New("acuity must be between 1 and 5")
	// ErrInvalidStatus is returned when a status value is not a member of
	// the enumeration.
	ErrInvalidStatus = errors.New("invalid patient status")
)

// MinAcuity and MaxAcuity bound the Emergency Severity Index (1 = most urgent).
const (
	MinAcuity = 1
	MaxAcuity = 5
)

// Patient is a person awaiting or receiving care in a department.
type Patient struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Acuity         int        `db:"acuity" json:"acuity"`
	ChiefComplaint string     `db:"chief_complaint" json:"chief_complaint"`
	Age            int        `db:"age" json:"age"`
	Gender         string     `db:"gender" json:"gender"`
	Department     string     `db:"department" json:"department"`
	Status         Status     `db:"status" json:"status"`
	BedID          *uuid.UUID `db:"bed_id" json:"bed_id,omitempty"`
	// Assigned staff are informational only; scheduling never consults them.
	AssignedNurseID     *uuid.UUID `db:"assigned_nurse_id" json:"assigned_nurse_id,omitempty"`
	AssignedPhysicianID *uuid.UUID `db:"assigned_physician_id" json:"assigned_physician_id,omitempty"`
	Notes               string     `db:"notes" json:"notes"`
	TriageNotes         string     `db:"triage_notes" json:"triage_notes"`
	ArrivalTime         time.Time  `db:"arrival_ts" json:"arrival_ts"`
	LastAssessedAt      time.Time  `db:"last_assessed_ts" json:"last_assessed_ts"`
	// StatusTimes maps each status ever entered to the time it was last
	// entered. Re-entering a status resets its clock.
	StatusTimes map[Status]time.Time `db:"status_times" json:"status_times"`
	// Seq breaks exact (acuity, arrival) ties reproducibly. Assigned once
	// at registration, monotonically increasing per scheduler.
	Seq int64 `db:"seq" json:"-"`
}

// Clone returns a deep copy so callers never hold live internal references.
func (p *Patient) Clone() *Patient {
	cp := *p
	if p.BedID != nil {
		id := *p.BedID
		cp.BedID = &id
	}
	if p.AssignedNurseID != nil {
		id := *p.AssignedNurseID
		cp.AssignedNurseID = &id
	}
	if p.AssignedPhysicianID != nil {
		id := *p.AssignedPhysicianID
		cp.AssignedPhysicianID = &id
	}
	cp.StatusTimes = make(map[Status]time.Time, len(p.StatusTimes))
	for s, ts := range p.StatusTimes {
		cp.StatusTimes[s] = ts
	}
	return &cp
}

// EnterStatus records the transition into status at ts, overwriting any prior
// entry time for the same status.
func (p *Patient) EnterStatus(status Status, ts time.Time) {
	p.Status = status
	if p.StatusTimes == nil {
		p.StatusTimes = make(map[Status]time.Time)
	}
	p.StatusTimes[status] = ts
}

// CurrentStatusSince returns when the patient last entered their current
// status, falling back to arrival time when no entry was recorded.
func (p *Patient) CurrentStatusSince() time.Time {
	if ts, ok := p.StatusTimes[p.Status]; ok {
		return ts
	}
	return p.ArrivalTime
}

// Less orders patients by the triage key: lower acuity first, then earlier
// arrival, then insertion sequence.
func (p *Patient) Less(other *Patient) bool {
	if p.Acuity != other.Acuity {
		return p.Acuity < other.Acuity
	}
	if !p.ArrivalTime.Equal(other.ArrivalTime) {
		return p.ArrivalTime.Before(other.ArrivalTime)
	}
	return p.Seq < other.Seq
}
