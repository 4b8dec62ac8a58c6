package doses

import (
	"time"

	"panacea/internal/domain/medications"
)

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusTaken    Status = "taken"
	StatusMissed   Status = "missed"
	StatusSkipped  Status = "skipped"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusTaken, StatusMissed, StatusSkipped:
		return true
	}
	return false
}

// DoseEvent es una toma esperada (o registrada) de un medicamento en un día y hora.
// Clave natural: (MedicationID, Date, ScheduledTime).
type DoseEvent struct {
	ID           string
	UserID       string
	MedicationID string

	Date          string // YYYY-MM-DD
	ScheduledTime string // HH:MM

	Status  Status
	TakenAt *time.Time // sólo se setea al pasar a taken

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key identifica una toma. UserID va siempre para que ningún lookup cruce usuarios.
type Key struct {
	UserID        string
	MedicationID  string
	Date          string
	ScheduledTime string
}

func (e DoseEvent) Key() Key {
	return Key{
		UserID:        e.UserID,
		MedicationID:  e.MedicationID,
		Date:          e.Date,
		ScheduledTime: e.ScheduledTime,
	}
}

// ScheduledDose es una entrada de la agenda diaria: la toma más un snapshot del medicamento.
type ScheduledDose struct {
	Event      DoseEvent
	Medication medications.Medication
}
