package bed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgRepo struct{ pool *pgxpool.Pool }

// NewPGRepo returns a Repository backed by the beds table.
func NewPGRepo(pool *pgxpool.Pool) Repository { return &pgRepo{pool: pool} }

const bedCols = `id, bed_type, section, features, status, patient_id`

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	var rawFeatures []byte
	err := row.Scan(&b.ID, &b.BedType, &b.Section, &rawFeatures, &b.Status, &b.PatientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(rawFeatures) > 0 {
		if err := json.Unmarshal(rawFeatures, &b.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
	}
	return &b, nil
}

func encodeFeatures(b *Bed) ([]byte, error) {
	if b.Features == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(b.Features)
}

func (r *pgRepo) Insert(ctx context.Context, b *Bed) error {
	features, err := encodeFeatures(b)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO beds (id, bed_type, section, features, status, patient_id)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		b.ID, b.BedType, b.Section, features, b.Status, b.PatientID)
	return err
}

func (r *pgRepo) Update(ctx context.Context, b *Bed) error {
	features, err := encodeFeatures(b)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE beds SET bed_type=$2, section=$3, features=$4, status=$5, patient_id=$6
		WHERE id = $1`,
		b.ID, b.BedType, b.Section, features, b.Status, b.PatientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepo) GetByID(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.pool.QueryRow(ctx, `SELECT `+bedCols+` FROM beds WHERE id = $1`, id))
}

func (r *pgRepo) GetByPatient(ctx context.Context, patientID uuid.UUID) (*Bed, error) {
	return scanBed(r.pool.QueryRow(ctx, `SELECT `+bedCols+` FROM beds WHERE patient_id = $1`, patientID))
}

func (r *pgRepo) List(ctx context.Context, filter Filter) ([]*Bed, error) {
	query := `SELECT ` + bedCols + ` FROM beds WHERE 1=1`
	var args []interface{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.BedType != "" {
		args = append(args, filter.BedType)
		query += fmt.Sprintf(" AND bed_type = $%d", len(args))
	}
	if filter.Section != "" {
		args = append(args, filter.Section)
		query += fmt.Sprintf(" AND section = $%d", len(args))
	}
	query += " ORDER BY created_at"
	return r.queryBeds(ctx, query, args...)
}

// FindOpen filters type and section in SQL and the feature subset in code,
// keeping enumeration order stable via created_at.
func (r *pgRepo) FindOpen(ctx context.Context, c Constraints) (*Bed, error) {
	query := `SELECT ` + bedCols + ` FROM beds WHERE status = $1`
	args := []interface{}{StatusOpen}
	if c.BedType != "" {
		args = append(args, c.BedType)
		query += fmt.Sprintf(" AND bed_type = $%d", len(args))
	}
	if c.Section != "" {
		args = append(args, c.Section)
		query += fmt.Sprintf(" AND section = $%d", len(args))
	}
	query += " ORDER BY created_at"
	candidates, err := r.queryBeds(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for _, b := range candidates {
		if b.HasFeatures(c.Features) {
			return b, nil
		}
	}
	return nil, nil
}

func (r *pgRepo) queryBeds(ctx context.Context, query string, args ...interface{}) ([]*Bed, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}
