// Package cron runs the standing background processes around the
// scheduler: the asynq worker that fires one-shot batch reminders, and
// the minute-granularity trigger that enqueues them (§4.9).
package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"bloomify/config"
	"bloomify/database/store"
	"bloomify/models"
	"bloomify/services/allocator"
	"bloomify/services/clock"
	"bloomify/services/notification"
	"bloomify/services/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

// InitReminderWorker runs the asynq reminder worker in the background,
// the same retry/health-monitor shape as the teacher's worker.
func InitReminderWorker(s store.Store, c *clock.Clock, dispatcher *notification.Dispatcher, directory notification.PatientDirectory) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendReminder, handleReminderTask(s, c, dispatcher, directory))

	go monitorRedisConnection()

	go func() {
		log.Println("[ReminderWorker] starting async worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[ReminderWorker] attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[ReminderWorker] max retry attempts reached, exiting")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
}

func handleReminderTask(s store.Store, c *clock.Clock, dispatcher *notification.Dispatcher, directory notification.PatientDirectory) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.ReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[ReminderHandler] invalid payload: %v", err)
			return err
		}

		doc, err := s.Get(ctx, "appointments", p.AppointmentID)
		if err != nil {
			return err
		}
		if doc == nil {
			log.Printf("[ReminderHandler] appointment %s no longer exists, dropping", p.AppointmentID)
			return nil
		}
		appt := allocator.AppointmentFromDoc(doc)
		if appt.Status.IsTerminal() {
			return nil
		}
		guardField := "reminderEveningSent"
		alreadySent := appt.ReminderEveningSent
		if p.Window == models.ReminderWindowMorning {
			guardField = "reminderMorningSent"
			alreadySent = appt.ReminderMorningSent
		}
		if alreadySent {
			return nil
		}

		clinicDoc, err := s.Get(ctx, "clinics", p.ClinicID)
		if err != nil {
			return err
		}
		mode := models.DistributionAdvanced
		if clinicDoc != nil {
			if v, ok := clinicDoc["tokenDistribution"].(string); ok {
				mode = models.TokenDistributionMode(v)
			}
		}

		phone, pushToken, err := directory.Contact(ctx, appt.PatientID)
		if err != nil {
			log.Printf("[ReminderHandler] could not resolve contact for patient %s: %v", appt.PatientID, err)
			return err
		}

		// Mark the guard regardless of send outcome: §4.9 sends are
		// at-most-once, with failures logged rather than retried.
		dispatcher.Dispatch(ctx, notification.DispatchRequest{
			ClinicID: p.ClinicID, Kind: models.KindDailyReminder,
			Phone: phone, PushToken: pushToken, Appointment: appt, Mode: mode,
			Now: c.Now(),
		})

		err = s.Txn(ctx, func(ctx context.Context, tx store.Tx) error {
			tx.Update("appointments", appt.ID, store.Doc{guardField: true})
			return nil
		})
		if err != nil {
			log.Printf("[ReminderHandler] failed to record reminder guard: %v", err)
		}
		return err
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[ReminderWorker] redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
