package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pinforge/pin-server-go/internal/repository"
)

// RetentionJob periodically purges redeemed PINs older than the configured
// retention period. Unredeemed records are kept forever: expiry is a
// redemption-time check, never a deletion trigger. A zero retention
// disables the job entirely.
type RetentionJob struct {
	pinRepo   repository.PinRepository
	retention time.Duration
	interval  time.Duration
	done      chan struct{}
}

func NewRetentionJob(pinRepo repository.PinRepository, retention, interval time.Duration) *RetentionJob {
	return &RetentionJob{
		pinRepo:   pinRepo,
		retention: retention,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *RetentionJob) Start() {
	if j.retention <= 0 {
		log.Info().Msg("pin retention disabled, keeping all records")
		return
	}
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("retention", j.retention).Msg("retention job started")
}

func (j *RetentionJob) Stop() {
	close(j.done)
}

func (j *RetentionJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.purge()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.purge()
		}
	}
}

func (j *RetentionJob) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.retention)
	count, err := j.pinRepo.DeleteUsedBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to purge redeemed pins")
	} else if count > 0 {
		log.Info().Int64("count", count).Time("cutoff", cutoff).Msg("purged redeemed pins")
	}
}
