package cron

import (
	"context"
	"log"

	"bloomify/config"
	"bloomify/database/store"
	"bloomify/models"
	"bloomify/services/allocator"
	"bloomify/services/clock"
	"bloomify/services/tasks"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

// StartReminderScheduler runs the clinic-local batch-window trigger: once
// a minute, for every clinic whose local time falls in the evening
// ([17:00,19:00)) or morning ([07:00,09:00)) reminder window, it enqueues
// one reminder task per eligible appointment, guarded by
// reminderEveningSent/reminderMorningSent so each appointment is
// enqueued at most once per window (§4.9).
func StartReminderScheduler(s store.Store, c *clock.Clock) (*cron.Cron, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	})

	sched := cron.New()
	_, err := sched.AddFunc("* * * * *", func() {
		runReminderSweep(context.Background(), s, c, client)
	})
	if err != nil {
		return nil, err
	}
	sched.Start()
	return sched, nil
}

func runReminderSweep(ctx context.Context, s store.Store, c *clock.Clock, client *asynq.Client) {
	now := c.Now()
	hm := now.Hour()*60 + now.Minute()

	var window models.ReminderWindow
	var targetDate string
	switch {
	case hm >= 17*60 && hm < 19*60:
		window = models.ReminderWindowEvening
		targetDate = c.FormatISODate(now.AddDate(0, 0, 1))
	case hm >= 7*60 && hm < 9*60:
		window = models.ReminderWindowMorning
		targetDate = c.FormatISODate(now)
	default:
		return
	}

	clinics, err := s.Query(ctx, "clinics", store.Filter{}, nil)
	if err != nil {
		log.Printf("[ReminderScheduler] failed to list clinics: %v", err)
		return
	}

	guardField := "reminderEveningSent"
	if window == models.ReminderWindowMorning {
		guardField = "reminderMorningSent"
	}

	for _, clinicDoc := range clinics {
		clinicID, _ := clinicDoc["id"].(string)
		if clinicID == "" {
			continue
		}
		docs, err := s.Query(ctx, "appointments", store.Filter{
			"clinicId": store.Eq(clinicID),
			"date":     store.Eq(targetDate),
		}, nil)
		if err != nil {
			log.Printf("[ReminderScheduler] clinic %s: query failed: %v", clinicID, err)
			continue
		}
		for _, doc := range docs {
			appt := allocator.AppointmentFromDoc(doc)
			if appt.Status.IsTerminal() || appt.IsBreakBlock() {
				continue
			}
			if guardField == "reminderEveningSent" && appt.ReminderEveningSent {
				continue
			}
			if guardField == "reminderMorningSent" && appt.ReminderMorningSent {
				continue
			}

			task, opts, err := tasks.NewReminderTask(models.ReminderPayload{
				AppointmentID: appt.ID, ClinicID: clinicID, Window: window,
			}, now)
			if err != nil {
				log.Printf("[ReminderScheduler] build task failed: %v", err)
				continue
			}
			if _, err := client.EnqueueContext(ctx, task, opts...); err != nil {
				log.Printf("[ReminderScheduler] enqueue failed for %s: %v", appt.ID, err)
			}
		}
	}
}
