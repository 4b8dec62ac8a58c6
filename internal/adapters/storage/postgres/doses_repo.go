package postgres

import (
	"context"
	"database/sql"
	"errors"

	"panacea/internal/domain/doses"
)

type DosesRepo struct {
	db *sql.DB
}

func NewDosesRepo(db *sql.DB) *DosesRepo {
	return &DosesRepo{db: db}
}

// date se devuelve como texto para no pasar por time.Time (y su zona).
const doseColumns = `
	id, user_id, medication_id,
	to_char(date, 'YYYY-MM-DD'), scheduled_time,
	status, taken_at,
	created_at, updated_at
`

func (r *DosesRepo) Create(ctx context.Context, e doses.DoseEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dose_events (
			id, user_id, medication_id,
			date, scheduled_time,
			status, taken_at,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4::date,$5,$6,$7,$8,$9)
	`,
		e.ID,
		e.UserID,
		e.MedicationID,
		e.Date,
		e.ScheduledTime,
		string(e.Status),
		toNullTime(e.TakenAt),
		e.CreatedAt,
		e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return doses.ErrConflict
	}
	return err
}

func (r *DosesRepo) Update(ctx context.Context, e doses.DoseEvent) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE dose_events
		SET
			status = $3,
			taken_at = $4,
			updated_at = $5
		WHERE id = $1 AND user_id = $2
	`,
		e.ID,
		e.UserID,
		string(e.Status),
		toNullTime(e.TakenAt),
		e.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return doses.ErrNotFound
	}
	return nil
}

func (r *DosesRepo) FindByKey(ctx context.Context, k doses.Key) (doses.DoseEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+doseColumns+`
		FROM dose_events
		WHERE medication_id = $1 AND date = $2::date AND scheduled_time = $3 AND user_id = $4
	`, k.MedicationID, k.Date, k.ScheduledTime, k.UserID)

	e, err := scanDose(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return doses.DoseEvent{}, doses.ErrNotFound
		}
		return doses.DoseEvent{}, err
	}
	return e, nil
}

func (r *DosesRepo) ListByUserAndDate(ctx context.Context, userID, date string) ([]doses.DoseEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+doseColumns+`
		FROM dose_events
		WHERE user_id = $1 AND date = $2::date
		ORDER BY scheduled_time ASC, medication_id ASC
	`, userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]doses.DoseEvent, 0)
	for rows.Next() {
		e, err := scanDose(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *DosesRepo) MarkMissedBefore(ctx context.Context, date, hhmm string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE dose_events
		SET status = 'missed', updated_at = now()
		WHERE date = $1::date AND status = 'upcoming' AND scheduled_time < $2
	`, date, hhmm)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *DosesRepo) DeleteByMedication(ctx context.Context, userID, medicationID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM dose_events WHERE medication_id = $1 AND user_id = $2
	`, medicationID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanDose(row rowScanner) (doses.DoseEvent, error) {
	var (
		e       doses.DoseEvent
		status  string
		takenAt sql.NullTime
	)
	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.MedicationID,
		&e.Date,
		&e.ScheduledTime,
		&status,
		&takenAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return doses.DoseEvent{}, err
	}
	e.Status = doses.Status(status)
	if takenAt.Valid {
		t := takenAt.Time
		e.TakenAt = &t
	}
	return e, nil
}
