package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"panacea/internal/adapters/storage/memory"
	"panacea/internal/domain/doses"
	"panacea/internal/domain/dosetime"
	"panacea/internal/domain/medications"
	"panacea/internal/platform/metrics"
	"panacea/internal/ports/notify"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentNotification struct {
	UserID string
	N      notify.Notification
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []sentNotification

	noSubscription map[string]bool
	failFor        map[string]bool
}

func (d *fakeDispatcher) Send(ctx context.Context, userID string, n notify.Notification) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failFor[userID] {
		return false, errors.New("endpoint down")
	}
	if d.noSubscription[userID] {
		return false, nil
	}
	d.sent = append(d.sent, sentNotification{UserID: userID, N: n})
	return true, nil
}

const today = "2025-03-10"

func clockAt(date, hhmm string) dosetime.Clock {
	at, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hhmm, time.UTC)
	if err != nil {
		panic(err)
	}
	return dosetime.Clock{Now: func() time.Time { return at }, Location: time.UTC}
}

func addMed(t *testing.T, repo medications.Repository, id, userID string, active bool, timings ...string) medications.Medication {
	t.Helper()
	m := medications.Medication{
		ID:             id,
		UserID:         userID,
		Name:           "Med " + id,
		Dosage:         "10ml",
		Timings:        timings,
		TotalStock:     10,
		RemainingStock: 10,
		Active:         active,
	}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

func addDose(t *testing.T, repo doses.Repository, id, userID, medID, date, hhmm string, st doses.Status) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), doses.DoseEvent{
		ID:            id,
		UserID:        userID,
		MedicationID:  medID,
		Date:          date,
		ScheduledTime: hhmm,
		Status:        st,
	}))
}

func TestReminderSweep_SkipsTakenSlots(t *testing.T) {
	meds := memory.NewMedicationRepo()
	doseRepo := memory.NewDoseRepo()
	addMed(t, meds, "m1", "u1", true, "08:00", "20:00")
	addMed(t, meds, "m2", "u2", true, "20:00")
	addDose(t, doseRepo, "d1", "u1", "m1", today, "20:00", doses.StatusTaken)

	d := &fakeDispatcher{}
	m := metrics.New()
	sweep := NewReminderSweep(meds, doseRepo, d, ReminderOptions{Clock: clockAt(today, "20:00"), Metrics: m})

	rep, err := sweep.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Candidates)
	assert.Equal(t, 1, rep.Sent)
	assert.Equal(t, 1, rep.Skipped)
	require.Len(t, d.sent, 1)
	assert.Equal(t, "u2", d.sent[0].UserID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemindersDispatched.WithLabelValues(ResultSent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemindersDispatched.WithLabelValues(ResultAlreadyTaken)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRuns.WithLabelValues("reminders")))
}

func TestReminderSweep_PayloadShape(t *testing.T) {
	meds := memory.NewMedicationRepo()
	med := addMed(t, meds, "m1", "u1", true, "08:00")

	d := &fakeDispatcher{}
	sweep := NewReminderSweep(meds, memory.NewDoseRepo(), d, ReminderOptions{Clock: clockAt(today, "08:00")})

	_, err := sweep.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	n := d.sent[0].N
	assert.Equal(t, "💊 Medicine Reminder", n.Title)
	assert.Equal(t, "Time to take Med m1 (10ml)", n.Body)
	assert.Equal(t, map[string]string{
		"type":         "medication_reminder",
		"medicationId": med.ID,
		"time":         "08:00",
	}, n.Data)
}

func TestReminderSweep_OnlyActiveMedicationsAtThisMinute(t *testing.T) {
	meds := memory.NewMedicationRepo()
	addMed(t, meds, "on-time", "u1", true, "08:00")
	addMed(t, meds, "later", "u1", true, "08:01")
	addMed(t, meds, "paused", "u1", false, "08:00")

	d := &fakeDispatcher{}
	sweep := NewReminderSweep(meds, memory.NewDoseRepo(), d, ReminderOptions{Clock: clockAt(today, "08:00")})

	rep, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Candidates)
	require.Len(t, d.sent, 1)
	assert.Equal(t, "on-time", d.sent[0].N.Data["medicationId"])
}

func TestReminderSweep_FailuresDoNotStopTheCycle(t *testing.T) {
	meds := memory.NewMedicationRepo()
	addMed(t, meds, "m1", "broken", true, "08:00")
	addMed(t, meds, "m2", "nosub", true, "08:00")
	addMed(t, meds, "m3", "ok", true, "08:00")

	d := &fakeDispatcher{
		failFor:        map[string]bool{"broken": true},
		noSubscription: map[string]bool{"nosub": true},
	}
	sweep := NewReminderSweep(meds, memory.NewDoseRepo(), d, ReminderOptions{
		Clock:       clockAt(today, "08:00"),
		Concurrency: 1,
	})

	rep, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Candidates)
	assert.Equal(t, 1, rep.Sent)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Skipped)
}

func TestMissedDoseSweep_OnlyPastUpcomingOfToday(t *testing.T) {
	repo := memory.NewDoseRepo()
	addDose(t, repo, "d1", "u1", "m1", today, "10:00", doses.StatusUpcoming)
	addDose(t, repo, "d2", "u1", "m1", today, "22:00", doses.StatusUpcoming)
	addDose(t, repo, "d3", "u1", "m1", today, "09:00", doses.StatusTaken)
	addDose(t, repo, "d4", "u1", "m1", today, "08:00", doses.StatusSkipped)
	addDose(t, repo, "d5", "u1", "m1", "2025-03-09", "10:00", doses.StatusUpcoming)

	m := metrics.New()
	sweep := NewMissedDoseSweep(repo, MissedOptions{Clock: clockAt(today, "21:00"), Metrics: m})

	n, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	status := func(date, hhmm string) doses.Status {
		e, err := repo.FindByKey(context.Background(), doses.Key{UserID: "u1", MedicationID: "m1", Date: date, ScheduledTime: hhmm})
		require.NoError(t, err)
		return e.Status
	}
	assert.Equal(t, doses.StatusMissed, status(today, "10:00"))
	assert.Equal(t, doses.StatusUpcoming, status(today, "22:00"))
	assert.Equal(t, doses.StatusTaken, status(today, "09:00"))
	assert.Equal(t, doses.StatusSkipped, status(today, "08:00"))
	assert.Equal(t, doses.StatusUpcoming, status("2025-03-09", "10:00"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DosesMarkedMissed))
}

type failingMarker struct{}

func (failingMarker) MarkMissedBefore(ctx context.Context, date, hhmm string) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestMissedDoseSweep_ErrorIsCounted(t *testing.T) {
	m := metrics.New()
	sweep := NewMissedDoseSweep(failingMarker{}, MissedOptions{Clock: clockAt(today, "21:00"), Metrics: m})

	_, err := sweep.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepErrors.WithLabelValues("missed_doses")))
}

func TestScheduler_RegistersBothJobs(t *testing.T) {
	meds := memory.NewMedicationRepo()
	doseRepo := memory.NewDoseRepo()

	s, err := NewScheduler(
		NewReminderSweep(meds, doseRepo, &fakeDispatcher{}, ReminderOptions{}),
		NewMissedDoseSweep(doseRepo, MissedOptions{}),
		SchedulerOptions{Location: time.UTC},
	)
	require.NoError(t, err)
	defer func() { _ = s.Shutdown() }()

	assert.ElementsMatch(t, []string{"reminders", "missed_doses"}, s.Jobs())
}

func TestScheduler_InvalidCron(t *testing.T) {
	_, err := NewScheduler(
		NewReminderSweep(memory.NewMedicationRepo(), memory.NewDoseRepo(), &fakeDispatcher{}, ReminderOptions{}),
		nil,
		SchedulerOptions{ReminderSchedule: "every minute please"},
	)
	assert.Error(t, err)
}
