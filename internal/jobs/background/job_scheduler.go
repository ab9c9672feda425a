package background

import (
	"context"
	"log"
	"sync"
	"time"

	"montisprint/internal/repositories"

	"github.com/go-co-op/gocron/v2"
)

const (
	// Claims older than this are considered abandoned by their agent.
	staleClaimThreshold = 5 * time.Minute
	// Jobs that exhaust this many delivery attempts are failed for good.
	maxDeliveryAttempts = 5
	// Consumed and expired tokens are kept around briefly for debugging.
	tokenRetention = 24 * time.Hour
)

// JobScheduler manages background maintenance jobs for the print queue.
type JobScheduler struct {
	scheduler gocron.Scheduler
	jobRepo   repositories.PrintJobRepository
	tokenRepo repositories.PairingTokenRepository
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(jobRepo repositories.PrintJobRepository, tokenRepo repositories.PairingTokenRepository) *JobScheduler {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	js := &JobScheduler{
		scheduler: scheduler,
		jobRepo:   jobRepo,
		tokenRepo: tokenRepo,
		jobs:      make(map[string]gocron.Job),
	}

	js.registerJobs()

	return js
}

// Start starts the job scheduler
func (js *JobScheduler) Start() error {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
	return nil
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// registerJobs registers all background jobs
func (js *JobScheduler) registerJobs() {
	// Stale claim sweep - every minute
	sweepJob, err := js.scheduler.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(js.reclaimStaleJobs, context.Background()),
		gocron.WithName("stale-claim-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create stale claim sweep job: %v", err)
	} else {
		js.jobs["stale-claim-sweep"] = sweepJob
	}

	// Pairing token pruning - every hour
	pruneJob, err := js.scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(js.pruneExpiredTokens, context.Background()),
		gocron.WithName("pairing-token-prune"),
	)
	if err != nil {
		log.Printf("Failed to create pairing token prune job: %v", err)
	} else {
		js.jobs["pairing-token-prune"] = pruneJob
	}

	log.Printf("Registered %d background jobs", len(js.jobs))
}

// reclaimStaleJobs returns abandoned claims to the queue. Jobs whose agent
// claimed them but never acknowledged within the threshold go back to
// pending, until they run out of delivery attempts and are failed.
func (js *JobScheduler) reclaimStaleJobs(ctx context.Context) error {
	requeued, failed, err := js.jobRepo.ReclaimStale(ctx, time.Now().Add(-staleClaimThreshold), maxDeliveryAttempts)
	if err != nil {
		log.Printf("Failed to reclaim stale print jobs: %v", err)
		return err
	}

	if requeued > 0 || failed > 0 {
		log.Printf("Stale claim sweep: requeued %d jobs, failed %d jobs", requeued, failed)
	}
	return nil
}

// pruneExpiredTokens deletes pairing tokens well past their expiry.
func (js *JobScheduler) pruneExpiredTokens(ctx context.Context) error {
	pruned, err := js.tokenRepo.Prune(ctx, time.Now().Add(-tokenRetention))
	if err != nil {
		log.Printf("Failed to prune pairing tokens: %v", err)
		return err
	}

	if pruned > 0 {
		log.Printf("Pruned %d expired pairing tokens", pruned)
	}
	return nil
}

// AddJob adds a custom job to the scheduler
func (js *JobScheduler) AddJob(name string, interval time.Duration, taskFn interface{}, params ...interface{}) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(taskFn, params...),
		gocron.WithName(name),
	)

	if err != nil {
		return err
	}

	js.jobs[name] = job
	log.Printf("Added custom job: %s", name)
	return nil
}

// RemoveJob removes a job from the scheduler
func (js *JobScheduler) RemoveJob(name string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if job, exists := js.jobs[name]; exists {
		err := js.scheduler.RemoveJob(job.ID())
		delete(js.jobs, name)
		return err
	}

	return nil
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	status := make(map[string]interface{})
	status["total_jobs"] = len(js.jobs)
	jobs := make([]string, 0, len(js.jobs))

	for name := range js.jobs {
		jobs = append(jobs, name)
	}

	status["jobs"] = jobs

	return status
}
