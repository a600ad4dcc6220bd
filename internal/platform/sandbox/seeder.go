// Package sandbox provides synthetic demo data for sandbox environments: a
// realistic bed inventory across hospital units and an emergency-department
// census of waiting patients. Generation is reproducible given a seed, which
// makes it suitable for integration testing, developer on-boarding, and UI
// demos.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/erflow/erflow/internal/domain/bed"
	"github.com/erflow/erflow/internal/domain/patient"
)

// PatientIntake registers new arrivals. Satisfied by *patient.Scheduler.
type PatientIntake interface {
	Register(ctx context.Context, in patient.RegisterInput) (*patient.Patient, error)
}

// BedInventory adds beds to the registry. Satisfied by *bed.Registry.
type BedInventory interface {
	AddBed(ctx context.Context, bedType, section string, features []string) (*bed.Bed, error)
}

// SeedConfig controls the volume and shape of generated demo data.
type SeedConfig struct {
	// PatientCount is the number of randomly generated arrivals added on top
	// of the fixed census below.
	PatientCount int `json:"patientCount"`

	// IncludeFixedCensus seeds the curated set of named patients.
	IncludeFixedCensus bool `json:"includeFixedCensus"`

	// Seed makes generation reproducible. Zero picks a time-based seed.
	Seed int64 `json:"seed"`
}

// DefaultSeedConfig returns the configuration used by the seed command.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount:       10,
		IncludeFixedCensus: true,
	}
}

// SeedResult summarizes a seed run.
type SeedResult struct {
	Beds     int           `json:"beds"`
	Patients int           `json:"patients"`
	Duration time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Fixed inventory and census
// ---------------------------------------------------------------------------

type bedDef struct {
	bedType  string
	section  string
	features []string
}

// bedInventory covers every unit a transfer target could need: monitored and
// isolation ED bays, ventilated ICU rooms, telemetry step-down, and so on.
var bedInventory = []bedDef{
	{"ED", "ED-A1", []string{"cardiac_monitor"}},
	{"ED", "ED-A2", nil},
	{"ED", "ED-A3", []string{"isolation"}},
	{"ED", "ED-A4", []string{"cardiac_monitor"}},
	{"ED", "ED-B1", []string{"cardiac_monitor"}},
	{"ED", "ED-B2", nil},
	{"ED", "ED-B3", nil},
	{"ED", "ED-B4", []string{"isolation"}},
	{"ED", "ED-C1", []string{"trauma_bay"}},
	{"ED", "ED-C2", []string{"trauma_bay"}},
	{"ED", "ED-D1", nil},
	{"ED", "ED-D2", []string{"cardiac_monitor"}},
	{"ED", "ED-E1", []string{"pediatric"}},

	{"ICU", "ICU-1", []string{"ventilator", "cardiac_monitor"}},
	{"ICU", "ICU-2", []string{"ventilator", "cardiac_monitor"}},
	{"ICU", "ICU-3", []string{"ventilator"}},
	{"ICU", "ICU-4", []string{"ventilator", "cardiac_monitor"}},

	{"MED_SURG", "MS-201", nil},
	{"MED_SURG", "MS-202", nil},
	{"MED_SURG", "MS-203", []string{"telemetry"}},
	{"MED_SURG", "MS-204", nil},
	{"MED_SURG", "MS-205", []string{"telemetry"}},

	{"STEP_DOWN", "SD-101", []string{"telemetry", "cardiac_monitor"}},
	{"STEP_DOWN", "SD-102", []string{"telemetry"}},
	{"STEP_DOWN", "SD-103", []string{"telemetry", "cardiac_monitor"}},

	{"PEDS", "PEDS-1", []string{"pediatric"}},
	{"PEDS", "PEDS-2", []string{"pediatric"}},
	{"PEDS", "PEDS-3", []string{"pediatric", "isolation"}},

	{"PSYCH", "PSYCH-A", []string{"secure"}},
	{"PSYCH", "PSYCH-B", []string{"secure"}},

	{"OBS", "OBS-1", nil},
	{"OBS", "OBS-2", nil},
}

// fixedCensus is a curated ED waiting room covering every acuity level.
var fixedCensus = []patient.RegisterInput{
	{Name: "John Smith", Acuity: 2, ChiefComplaint: "Chest pain", Age: 65, Gender: "M"},
	{Name: "Mary Johnson", Acuity: 1, ChiefComplaint: "Severe trauma from MVA", Age: 42, Gender: "F"},
	{Name: "Robert Brown", Acuity: 3, ChiefComplaint: "Abdominal pain", Age: 55, Gender: "M"},
	{Name: "Patricia Davis", Acuity: 4, ChiefComplaint: "Ankle sprain", Age: 28, Gender: "F"},
	{Name: "Michael Wilson", Acuity: 2, ChiefComplaint: "Difficulty breathing", Age: 70, Gender: "M"},
	{Name: "Jennifer Garcia", Acuity: 3, ChiefComplaint: "Severe headache", Age: 38, Gender: "F"},
	{Name: "David Lee", Acuity: 2, ChiefComplaint: "Stroke symptoms", Age: 68, Gender: "M"},
	{Name: "Lisa Rodriguez", Acuity: 4, ChiefComplaint: "Nausea and vomiting", Age: 45, Gender: "F"},
	{Name: "James Taylor", Acuity: 5, ChiefComplaint: "Minor laceration", Age: 22, Gender: "M"},
	{Name: "Barbara Moore", Acuity: 3, ChiefComplaint: "Back pain", Age: 52, Gender: "F"},
	{Name: "William Jackson", Acuity: 1, ChiefComplaint: "Cardiac arrest", Age: 75, Gender: "M"},
	{Name: "Susan White", Acuity: 4, ChiefComplaint: "UTI symptoms", Age: 63, Gender: "F"},
	{Name: "Daniel Thompson", Acuity: 2, ChiefComplaint: "Severe allergic reaction", Age: 41, Gender: "M"},
	{Name: "Nancy Martin", Acuity: 5, ChiefComplaint: "Cold symptoms", Age: 35, Gender: "F"},
}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

var (
	givenNames = []string{
		"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael",
		"Linda", "David", "Elizabeth", "William", "Barbara", "Richard",
		"Susan", "Joseph", "Jessica", "Thomas", "Sarah", "Carlos", "Karen",
		"Daniel", "Nancy", "Matthew", "Lisa", "Anthony", "Betty", "Mark",
		"Margaret", "Steven", "Sandra",
	}
	familyNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
		"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
		"Lee", "Thompson", "White", "Harris", "Clark", "Lewis", "Walker",
		"Hall", "Allen", "Young",
	}
)

type complaintDef struct {
	text   string
	acuity int
}

var complaints = []complaintDef{
	{"Cardiac arrest", 1},
	{"Respiratory failure", 1},
	{"Chest pain", 2},
	{"Difficulty breathing", 2},
	{"Stroke symptoms", 2},
	{"Severe allergic reaction", 2},
	{"Abdominal pain", 3},
	{"Severe headache", 3},
	{"High fever", 3},
	{"Back pain", 3},
	{"Dehydration", 3},
	{"Ankle sprain", 4},
	{"Nausea and vomiting", 4},
	{"Ear infection", 4},
	{"UTI symptoms", 4},
	{"Minor laceration", 5},
	{"Cold symptoms", 5},
	{"Medication refill", 5},
}

// DataGenerator produces random but plausible ED arrivals.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// zero, the current time is used.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// GenerateArrival produces one random registration.
func (g *DataGenerator) GenerateArrival() patient.RegisterInput {
	complaint := complaints[g.rng.Intn(len(complaints))]
	gender := "M"
	if g.rng.Intn(2) == 1 {
		gender = "F"
	}
	return patient.RegisterInput{
		Name:           g.pick(givenNames) + " " + g.pick(familyNames),
		Acuity:         complaint.acuity,
		ChiefComplaint: complaint.text,
		Age:            1 + g.rng.Intn(94),
		Gender:         gender,
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Seeder writes the demo data set through the domain services so that every
// invariant (triage ordering, bed state machine) holds for seeded data too.
type Seeder struct {
	intake    PatientIntake
	inventory BedInventory
	generator *DataGenerator
	config    SeedConfig
}

// NewSeeder creates a Seeder writing through the given services.
func NewSeeder(intake PatientIntake, inventory BedInventory, config SeedConfig) *Seeder {
	return &Seeder{
		intake:    intake,
		inventory: inventory,
		generator: NewDataGenerator(config.Seed),
		config:    config,
	}
}

// Seed creates the bed inventory and the patient census.
func (s *Seeder) Seed(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	result := &SeedResult{}

	for _, def := range bedInventory {
		if _, err := s.inventory.AddBed(ctx, def.bedType, def.section, def.features); err != nil {
			return result, fmt.Errorf("seed bed %s: %w", def.section, err)
		}
		result.Beds++
	}

	if s.config.IncludeFixedCensus {
		for _, in := range fixedCensus {
			if _, err := s.intake.Register(ctx, in); err != nil {
				return result, fmt.Errorf("seed patient %s: %w", in.Name, err)
			}
			result.Patients++
		}
	}

	for i := 0; i < s.config.PatientCount; i++ {
		in := s.generator.GenerateArrival()
		if _, err := s.intake.Register(ctx, in); err != nil {
			return result, fmt.Errorf("seed generated patient: %w", err)
		}
		result.Patients++
	}

	result.Duration = time.Since(start)
	return result, nil
}
