// Package services – expiry sweeper.
//
// The sweeper is the backstop for the vote pipeline's lazy expiry check: it
// catches polls with zero active subscribers or voters near their end time,
// where no read path would ever flip them to inactive or tell subscribers
// that voting has ended.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-poll-backend/internal/repo"
)

// DefaultSweepInterval is how often the sweeper scans for silently expired
// polls.
const DefaultSweepInterval = 60 * time.Second

// Sweeper periodically deactivates polls whose end time has passed while they
// are still flagged active, and broadcasts their terminal state.
type Sweeper struct {
	// DB is the GORM handle used for scanning and deactivation.
	DB *gorm.DB
	// Broadcast receives the snapshot and terminal-state pushes. Optional.
	Broadcast Broadcaster
	// Interval between sweeps (DefaultSweepInterval if zero).
	Interval time.Duration
}

// NewSweeper constructs a Sweeper with the default interval.
func NewSweeper(db *gorm.DB, b Broadcaster) *Sweeper {
	return &Sweeper{DB: db, Broadcast: b, Interval: DefaultSweepInterval}
}

// Run sweeps on a fixed interval until ctx is canceled. Call it from its own
// goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("expiry sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: every expired-but-active poll is deactivated and its
// terminal state broadcast. A failure for one poll is logged and does not
// abort the sweep for the others. Lapsed guard entries are purged at the end
// of each pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	polls, err := repo.ListExpiredActive(ctx, s.DB, now)
	if err != nil {
		log.Error().Err(err).Msg("sweep: listing expired polls failed")
		return
	}

	expired := 0
	for i := range polls {
		p := &polls[i]
		if _, err := repo.DeactivatePoll(ctx, s.DB, p.ID); err != nil {
			sweeperErrors.Inc()
			log.Error().Err(err).Str("shareable_id", p.ShareableID).Msg("sweep: deactivation failed")
			continue
		}
		expired++
		sweeperExpired.Inc()

		if s.Broadcast != nil {
			s.Broadcast.BroadcastSnapshot(ctx, p.ShareableID)
			s.Broadcast.BroadcastExpired(ctx, p.ShareableID)
		}

		// Guard hygiene: nobody can vote on a closed poll, so its voter set
		// is dead weight. Correctness never depends on this delete.
		if err := repo.ClearPollGuard(ctx, s.DB, p.ID); err != nil {
			log.Warn().Err(err).Str("shareable_id", p.ShareableID).Msg("sweep: guard clear failed")
		}
	}

	if purged, err := repo.PurgeExpiredGuards(ctx, s.DB, now); err != nil {
		log.Warn().Err(err).Msg("sweep: guard purge failed")
	} else if purged > 0 {
		log.Info().Int64("purged", purged).Msg("sweep: purged lapsed guard entries")
	}

	if expired > 0 {
		log.Info().Int("expired", expired).Msg("sweep: deactivated expired polls")
	}
}
