package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/rhymeswithjazz/pull-list/internal/models"
)

const generationTimeout = 10 * time.Minute

// StartJobs starts the background job scheduler. It returns the scheduler so
// the caller can stop it on shutdown; the scheduler is nil when scheduling is
// disabled.
func StartJobs(app JobContext) *gocron.Scheduler {
	cfg := app.Config()
	if !cfg.Schedule.Enabled {
		log.Println("Scheduled generation is disabled.")
		return nil
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		log.Printf("Invalid schedule timezone %q, falling back to local: %v", cfg.Schedule.Timezone, err)
		loc = time.Local
	}

	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()

	at := fmt.Sprintf("%02d:%02d", cfg.Schedule.Hour, cfg.Schedule.Minute)
	log.Printf("Scheduling job: '%s' to run every %s at %s (%s).", JobGenerate, cfg.Schedule.Day, at, loc)

	_, err = scheduleOnDay(s.Every(1).Week(), cfg.Schedule.Day).At(at).Do(func() {
		log.Println("Scheduler is triggering job:", JobGenerate)
		result := RunGeneration(app, models.RunTypeScheduled)
		if !result.Success {
			log.Printf("Scheduled job '%s' failed: %s", JobGenerate, result.Error)
		}
	})
	if err != nil {
		log.Printf("Error scheduling '%s' job: %v", JobGenerate, err)
	}

	log.Println("Starting background job scheduler...")
	s.StartAsync()
	return s
}

func scheduleOnDay(s *gocron.Scheduler, day string) *gocron.Scheduler {
	switch strings.ToLower(day) {
	case "monday":
		return s.Monday()
	case "tuesday":
		return s.Tuesday()
	case "thursday":
		return s.Thursday()
	case "friday":
		return s.Friday()
	case "saturday":
		return s.Saturday()
	case "sunday":
		return s.Sunday()
	default:
		// New comics day.
		return s.Wednesday()
	}
}

// RunGeneration executes one pull-list generation run under the manager's
// single-flight guard, then hands the result to the notifier. The notifier
// runs after the run is finalized and can never change its outcome.
func RunGeneration(app JobContext, runType string) *models.PullListResult {
	jm := app.JobManager()
	if err := jm.Begin(JobGenerate); err != nil {
		return &models.PullListResult{Success: false, Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	defer cancel()

	cfg := app.Config()
	var result *models.PullListResult
	func() {
		// A panic must not leave the single-flight slot held.
		defer func() {
			if r := recover(); r != nil {
				result = &models.PullListResult{Success: false, Error: fmt.Sprintf("generation panicked: %v", r)}
			}
		}()
		result = app.PullList().Generate(ctx, runType, cfg.DaysBack, cfg.Readlist.Create)
	}()

	var runErr error
	if !result.Success {
		runErr = errors.New(result.Error)
	}
	jm.Finish(JobGenerate, runErr)

	app.Notifier().NotifyRunComplete(ctx, result)
	return result
}
