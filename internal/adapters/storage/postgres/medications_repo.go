package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"panacea/internal/domain/medications"

	"github.com/jackc/pgx/v5/pgtype"
)

type MedicationsRepo struct {
	db   *sql.DB
	tmap *pgtype.Map
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db, tmap: pgtype.NewMap()}
}

const medicationColumns = `
	id, user_id,
	name, dosage, timings, instructions,
	total_stock, remaining_stock, active,
	created_at, updated_at
`

func (r *MedicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medications (`+medicationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		m.ID,
		m.UserID,
		m.Name,
		m.Dosage,
		m.Timings,
		m.Instructions,
		m.TotalStock,
		m.RemainingStock,
		m.Active,
		m.CreatedAt,
		m.UpdatedAt,
	)
	return err
}

func (r *MedicationsRepo) Update(ctx context.Context, m medications.Medication) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET
			name = $3,
			dosage = $4,
			timings = $5,
			instructions = $6,
			total_stock = $7,
			remaining_stock = $8,
			active = $9,
			updated_at = $10
		WHERE id = $1 AND user_id = $2
	`,
		m.ID,
		m.UserID,
		m.Name,
		m.Dosage,
		m.Timings,
		m.Instructions,
		m.TotalStock,
		m.RemainingStock,
		m.Active,
		m.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return medications.ErrNotFound
	}
	return nil
}

// Delete: las tomas caen por ON DELETE CASCADE.
func (r *MedicationsRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM medications WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return medications.ErrNotFound
	}
	return nil
}

func (r *MedicationsRepo) GetByID(ctx context.Context, userID, id string) (medications.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medications.Medication{}, medications.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications
		WHERE id = $1 AND user_id = $2
	`, id, userID)

	m, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return medications.Medication{}, medications.ErrNotFound
		}
		return medications.Medication{}, err
	}
	return m, nil
}

func (r *MedicationsRepo) ListByUser(ctx context.Context, userID string) ([]medications.Medication, error) {
	return r.query(ctx, `
		SELECT `+medicationColumns+`
		FROM medications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
}

func (r *MedicationsRepo) ListActiveByUser(ctx context.Context, userID string) ([]medications.Medication, error) {
	return r.query(ctx, `
		SELECT `+medicationColumns+`
		FROM medications
		WHERE user_id = $1 AND active
		ORDER BY created_at ASC
	`, userID)
}

func (r *MedicationsRepo) ListActiveByTiming(ctx context.Context, hhmm string) ([]medications.Medication, error) {
	return r.query(ctx, `
		SELECT `+medicationColumns+`
		FROM medications
		WHERE active AND timings @> ARRAY[$1]::text[]
		ORDER BY user_id, created_at ASC
	`, hhmm)
}

// AdjustRemainingStock aplica el delta en la misma sentencia (sin read-modify-write).
func (r *MedicationsRepo) AdjustRemainingStock(ctx context.Context, userID, id string, delta int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET
			remaining_stock = GREATEST(remaining_stock + $3, 0),
			updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, id, userID, delta)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return medications.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *MedicationsRepo) scan(row rowScanner) (medications.Medication, error) {
	var m medications.Medication
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.Name,
		&m.Dosage,
		r.tmap.SQLScanner(&m.Timings),
		&m.Instructions,
		&m.TotalStock,
		&m.RemainingStock,
		&m.Active,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

func (r *MedicationsRepo) query(ctx context.Context, q string, args ...any) ([]medications.Medication, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medications.Medication, 0)
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
