package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgRepo struct{ pool *pgxpool.Pool }

// NewPGRepo returns a Repository backed by the patients table.
func NewPGRepo(pool *pgxpool.Pool) Repository { return &pgRepo{pool: pool} }

const patientCols = `id, name, acuity, chief_complaint, age, gender, department, status,
	bed_id, assigned_nurse_id, assigned_physician_id, notes, triage_notes,
	arrival_ts, last_assessed_ts, status_times, seq`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var rawTimes []byte
	err := row.Scan(&p.ID, &p.Name, &p.Acuity, &p.ChiefComplaint, &p.Age, &p.Gender,
		&p.Department, &p.Status, &p.BedID, &p.AssignedNurseID, &p.AssignedPhysicianID,
		&p.Notes, &p.TriageNotes, &p.ArrivalTime, &p.LastAssessedAt, &rawTimes, &p.Seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.StatusTimes = make(map[Status]time.Time)
	if len(rawTimes) > 0 {
		if err := json.Unmarshal(rawTimes, &p.StatusTimes); err != nil {
			return nil, fmt.Errorf("decode status_times: %w", err)
		}
	}
	return &p, nil
}

func encodeStatusTimes(p *Patient) ([]byte, error) {
	if p.StatusTimes == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.StatusTimes)
}

func (r *pgRepo) Insert(ctx context.Context, p *Patient) error {
	times, err := encodeStatusTimes(p)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO patients (id, name, acuity, chief_complaint, age, gender, department, status,
			bed_id, assigned_nurse_id, assigned_physician_id, notes, triage_notes,
			arrival_ts, last_assessed_ts, status_times, seq)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		p.ID, p.Name, p.Acuity, p.ChiefComplaint, p.Age, p.Gender, p.Department, p.Status,
		p.BedID, p.AssignedNurseID, p.AssignedPhysicianID, p.Notes, p.TriageNotes,
		p.ArrivalTime, p.LastAssessedAt, times, p.Seq)
	return err
}

func (r *pgRepo) Update(ctx context.Context, p *Patient) error {
	times, err := encodeStatusTimes(p)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE patients SET name=$2, acuity=$3, chief_complaint=$4, age=$5, gender=$6,
			department=$7, status=$8, bed_id=$9, assigned_nurse_id=$10,
			assigned_physician_id=$11, notes=$12, triage_notes=$13,
			last_assessed_ts=$14, status_times=$15
		WHERE id = $1`,
		p.ID, p.Name, p.Acuity, p.ChiefComplaint, p.Age, p.Gender,
		p.Department, p.Status, p.BedID, p.AssignedNurseID,
		p.AssignedPhysicianID, p.Notes, p.TriageNotes,
		p.LastAssessedAt, times)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *pgRepo) List(ctx context.Context, filter ListFilter) ([]*Patient, error) {
	query := `SELECT ` + patientCols + ` FROM patients WHERE 1=1`
	var args []interface{}
	if filter.Department != "" {
		args = append(args, filter.Department)
		query += fmt.Sprintf(" AND department = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY seq"
	return r.queryPatients(ctx, query, args...)
}

func (r *pgRepo) ListActive(ctx context.Context, department string) ([]*Patient, error) {
	query := `SELECT ` + patientCols + ` FROM patients WHERE status NOT IN ($1,$2,$3)`
	args := []interface{}{StatusDischarged, StatusAdmitted, StatusLeftWithoutBeingSeen}
	if department != "" {
		args = append(args, department)
		query += fmt.Sprintf(" AND department = $%d", len(args))
	}
	query += " ORDER BY seq"
	return r.queryPatients(ctx, query, args...)
}

func (r *pgRepo) queryPatients(ctx context.Context, query string, args ...interface{}) ([]*Patient, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
