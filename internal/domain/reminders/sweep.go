// Package reminders contiene los dos procesos periódicos del scheduler de dosis:
// el envío de recordatorios (cada minuto) y el paso a missed (cada hora).
package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"panacea/internal/domain/doses"
	"panacea/internal/domain/dosetime"
	"panacea/internal/domain/medications"
	"panacea/internal/platform/logger"
	"panacea/internal/platform/metrics"
	"panacea/internal/ports/notify"

	"golang.org/x/sync/errgroup"
)

const (
	NotificationType = "medication_reminder"
	ReminderTitle    = "💊 Medicine Reminder"

	DefaultConcurrency = 4
)

// Resultados de despacho (label de métricas).
const (
	ResultSent           = "sent"
	ResultNoSubscription = "no_subscription"
	ResultFailed         = "failed"
	ResultAlreadyTaken   = "already_taken"
)

type MedicationLister interface {
	ListActiveByTiming(ctx context.Context, hhmm string) ([]medications.Medication, error)
}

type DoseFinder interface {
	FindByKey(ctx context.Context, k doses.Key) (doses.DoseEvent, error)
}

type ReminderOptions struct {
	Clock       dosetime.Clock
	Logger      logger.Logger
	Metrics     *metrics.Metrics
	Concurrency int
}

// ReminderSweep avisa a cada usuario de las tomas que caen en el minuto actual.
type ReminderSweep struct {
	meds       MedicationLister
	doses      DoseFinder
	dispatcher notify.Dispatcher

	clock dosetime.Clock
	log   logger.Logger
	m     *metrics.Metrics
	limit int
}

func NewReminderSweep(meds MedicationLister, doseRepo DoseFinder, d notify.Dispatcher, opts ReminderOptions) *ReminderSweep {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	clock := opts.Clock
	if clock.Now == nil {
		clock = dosetime.NewClock(clock.Location)
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &ReminderSweep{
		meds:       meds,
		doses:      doseRepo,
		dispatcher: d,
		clock:      clock,
		log:        log.With(map[string]any{"component": "reminder_sweep"}),
		m:          opts.Metrics,
		limit:      limit,
	}
}

// ReminderReport resume un ciclo.
type ReminderReport struct {
	Date       string
	Time       string
	Candidates int
	Sent       int
	Skipped    int // ya tomadas o sin suscripción
	Failed     int
}

// Run procesa el minuto actual. Los errores de envío se loguean y cuentan pero
// no cortan el ciclo; sólo un error al listar medicamentos se devuelve.
func (s *ReminderSweep) Run(ctx context.Context) (ReminderReport, error) {
	start := time.Now()
	date, hhmm, _ := s.clock.Current()
	rep := ReminderReport{Date: date, Time: hhmm}

	meds, err := s.meds.ListActiveByTiming(ctx, hhmm)
	if err != nil {
		err = fmt.Errorf("list medications due at %s: %w", hhmm, err)
		s.log.Error("reminder sweep failed", map[string]any{"time": hhmm, "error": err.Error()})
		s.m.SweepFinished("reminders", time.Since(start).Seconds(), err)
		return rep, err
	}
	rep.Candidates = len(meds)

	results := make([]string, len(meds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, med := range meds {
		g.Go(func() error {
			results[i] = s.remind(gctx, med, date, hhmm)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		s.m.ReminderDispatched(r)
		switch r {
		case ResultSent:
			rep.Sent++
		case ResultFailed:
			rep.Failed++
		default:
			rep.Skipped++
		}
	}

	s.m.SweepFinished("reminders", time.Since(start).Seconds(), nil)
	if rep.Candidates > 0 {
		s.log.Info("reminder sweep done", map[string]any{
			"date":       date,
			"time":       hhmm,
			"candidates": rep.Candidates,
			"sent":       rep.Sent,
			"skipped":    rep.Skipped,
			"failed":     rep.Failed,
		})
	}
	return rep, nil
}

func (s *ReminderSweep) remind(ctx context.Context, med medications.Medication, date, hhmm string) string {
	fields := map[string]any{
		"user_id":       med.UserID,
		"medication_id": med.ID,
		"time":          hhmm,
	}

	e, err := s.doses.FindByKey(ctx, doses.Key{
		UserID:        med.UserID,
		MedicationID:  med.ID,
		Date:          date,
		ScheduledTime: hhmm,
	})
	switch {
	case err == nil && e.Status == doses.StatusTaken:
		return ResultAlreadyTaken
	case err != nil && !errors.Is(err, doses.ErrNotFound):
		fields["error"] = err.Error()
		s.log.Warn("dose lookup failed", fields)
		return ResultFailed
	}

	sent, err := s.dispatcher.Send(ctx, med.UserID, ReminderFor(med, hhmm))
	if err != nil {
		fields["error"] = err.Error()
		s.log.Warn("reminder dispatch failed", fields)
		return ResultFailed
	}
	if !sent {
		return ResultNoSubscription
	}
	s.log.Debug("reminder sent", fields)
	return ResultSent
}

// ReminderFor arma el payload del recordatorio.
func ReminderFor(med medications.Medication, hhmm string) notify.Notification {
	return notify.Notification{
		Title: ReminderTitle,
		Body:  fmt.Sprintf("Time to take %s (%s)", med.Name, med.Dosage),
		Data: map[string]string{
			"type":         NotificationType,
			"medicationId": med.ID,
			"time":         hhmm,
		},
	}
}

type MissedMarker interface {
	MarkMissedBefore(ctx context.Context, date, hhmm string) (int64, error)
}

type MissedOptions struct {
	Clock   dosetime.Clock
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// MissedDoseSweep pasa a missed las tomas de hoy cuya hora ya pasó y siguen upcoming.
type MissedDoseSweep struct {
	repo  MissedMarker
	clock dosetime.Clock
	log   logger.Logger
	m     *metrics.Metrics
}

func NewMissedDoseSweep(repo MissedMarker, opts MissedOptions) *MissedDoseSweep {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	clock := opts.Clock
	if clock.Now == nil {
		clock = dosetime.NewClock(clock.Location)
	}
	return &MissedDoseSweep{
		repo:  repo,
		clock: clock,
		log:   log.With(map[string]any{"component": "missed_dose_sweep"}),
		m:     opts.Metrics,
	}
}

// Run devuelve cuántas tomas cambió.
func (s *MissedDoseSweep) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	date, hhmm, _ := s.clock.Current()

	n, err := s.repo.MarkMissedBefore(ctx, date, hhmm)
	s.m.SweepFinished("missed_doses", time.Since(start).Seconds(), err)
	if err != nil {
		s.log.Error("missed dose sweep failed", map[string]any{
			"date":  date,
			"time":  hhmm,
			"error": err.Error(),
		})
		return 0, fmt.Errorf("mark missed before %s %s: %w", date, hhmm, err)
	}

	s.m.MarkedMissed(n)
	s.log.Info("missed dose sweep done", map[string]any{
		"date":   date,
		"time":   hhmm,
		"marked": n,
	})
	return n, nil
}
