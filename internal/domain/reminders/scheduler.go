package reminders

import (
	"context"
	"fmt"
	"time"

	"panacea/internal/platform/logger"

	"github.com/go-co-op/gocron/v2"
)

const (
	DefaultReminderSchedule   = "* * * * *"
	DefaultMissedDoseSchedule = "0 * * * *"

	// Techo por ciclo: un sweep colgado no debe pisar el siguiente tick.
	runTimeout = 50 * time.Second
)

type SchedulerOptions struct {
	ReminderSchedule   string
	MissedDoseSchedule string
	Location           *time.Location
	Logger             logger.Logger
}

// Scheduler dispara los dos sweeps con gocron. Cada job corre en modo singleton:
// si un ciclo se extiende, el tick siguiente se saltea en vez de encolarse.
type Scheduler struct {
	s   gocron.Scheduler
	log logger.Logger
}

func NewScheduler(reminder *ReminderSweep, missed *MissedDoseSweep, opts SchedulerOptions) (*Scheduler, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(map[string]any{"component": "scheduler"})

	reminderCron := opts.ReminderSchedule
	if reminderCron == "" {
		reminderCron = DefaultReminderSchedule
	}
	missedCron := opts.MissedDoseSchedule
	if missedCron == "" {
		missedCron = DefaultMissedDoseSchedule
	}

	var schedOpts []gocron.SchedulerOption
	if opts.Location != nil {
		schedOpts = append(schedOpts, gocron.WithLocation(opts.Location))
	}
	s, err := gocron.NewScheduler(schedOpts...)
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}

	if reminder != nil {
		_, err = s.NewJob(
			gocron.CronJob(reminderCron, false),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
				defer cancel()
				_, _ = reminder.Run(ctx)
			}),
			gocron.WithName("reminders"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("schedule reminders %q: %w", reminderCron, err)
		}
	}

	if missed != nil {
		_, err = s.NewJob(
			gocron.CronJob(missedCron, false),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
				defer cancel()
				_, _ = missed.Run(ctx)
			}),
			gocron.WithName("missed_doses"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("schedule missed doses %q: %w", missedCron, err)
		}
	}

	log.Info("scheduler configured", map[string]any{
		"reminder_schedule":    reminderCron,
		"missed_dose_schedule": missedCron,
	})

	return &Scheduler{s: s, log: log}, nil
}

func (s *Scheduler) Start() {
	s.s.Start()
	s.log.Info("scheduler started", nil)
}

// Shutdown espera a que terminen los jobs en curso.
func (s *Scheduler) Shutdown() error {
	err := s.s.Shutdown()
	s.log.Info("scheduler stopped", nil)
	return err
}

// Jobs devuelve los nombres de los jobs registrados.
func (s *Scheduler) Jobs() []string {
	jobs := s.s.Jobs()
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Name())
	}
	return out
}
