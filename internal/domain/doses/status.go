package doses

import (
	"time"

	"github.com/google/uuid"
)

// initialStatus clasifica una toma nueva: missed si su hora ya pasó respecto
// de cutoff, upcoming si no. Comparación de strings HH:MM.
func initialStatus(scheduledTime, cutoff string) Status {
	if scheduledTime < cutoff {
		return StatusMissed
	}
	return StatusUpcoming
}

func newEvent(k Key, status Status, now time.Time) DoseEvent {
	return DoseEvent{
		ID:            uuid.NewString(),
		UserID:        k.UserID,
		MedicationID:  k.MedicationID,
		Date:          k.Date,
		ScheduledTime: k.ScheduledTime,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
