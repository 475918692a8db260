// Package services – VoteService
//
// This file implements the vote pipeline, the one piece that ties concurrency
// safety to business rules. A vote request moves through:
//
//	received → validated → guard-checked → applied → guard-recorded →
//	broadcast → acknowledged
//
// with early-exit failures at every step. The counter increment is a single
// atomic operation at the store (repo.ApplyVote); the guard check and the
// increment are deliberately NOT one transaction. Two concurrent votes from
// the same identity can both pass the guard check before either records
// membership, double counting by at most one vote per racing pair. That
// bounded inconsistency is accepted instead of a distributed lock; the
// dominant use case is low-concurrency casual polling.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-poll-backend/internal/domain"
	"github.com/tbourn/go-poll-backend/internal/repo"
)

// Broadcaster pushes poll state to all real-time subscribers of a poll topic.
// Delivery is best-effort push; implementations log rather than return errors.
type Broadcaster interface {
	// BroadcastSnapshot recomputes the poll's snapshot and pushes it to every
	// subscriber of the poll's topic.
	BroadcastSnapshot(ctx context.Context, shareableID string)
	// BroadcastExpired pushes the distinct terminal-state event, so clients
	// can tell "voting has ended" apart from "tally changed".
	BroadcastExpired(ctx context.Context, shareableID string)
}

// DefaultGuardTTL is the retention window for duplicate-vote guard entries.
const DefaultGuardTTL = 30 * 24 * time.Hour

// VoteService runs the vote pipeline.
type VoteService struct {
	// DB is the GORM handle used for poll and guard persistence.
	DB *gorm.DB
	// Broadcast receives the updated snapshot after a successful vote.
	// Optional; nil disables real-time pushes (useful in tests).
	Broadcast Broadcaster
	// GuardTTL is the duplicate-vote retention window (DefaultGuardTTL if zero).
	GuardTTL time.Duration
	// ApplyRetries bounds retries of the atomic increment on transient store
	// failures (defaults to 3 attempts total when zero).
	ApplyRetries int
	// RetryBackoff is the pause between retry attempts (50ms if zero).
	RetryBackoff time.Duration
}

// NewVoteService constructs a VoteService with default guard TTL and retry
// policy.
func NewVoteService(db *gorm.DB, b Broadcaster) *VoteService {
	return &VoteService{DB: db, Broadcast: b, GuardTTL: DefaultGuardTTL}
}

// Vote casts one vote for options[optionIndex] of the poll behind shareableID
// on behalf of voterID (a best-effort client network address; NAT collapses
// distinct voters to one identity, a documented simplicity/privacy tradeoff).
//
// Returns the updated snapshot on success. Failure sentinels:
// ErrPollNotFound, ErrPollExpired, ErrPollInactive, ErrInvalidOption,
// ErrDuplicateVote, ErrStoreUnavailable.
func (s *VoteService) Vote(ctx context.Context, shareableID string, optionIndex int, voterID string) (*domain.Snapshot, error) {
	ctx, span := otel.Tracer("services").Start(ctx, "VoteService.Vote",
		trace.WithAttributes(
			attribute.String("poll.shareable_id", shareableID),
			attribute.Int("poll.option_index", optionIndex),
		))
	defer span.End()

	now := time.Now().UTC()

	// Load and lazily expire. This is the primary expiry-enforcement path;
	// the sweeper is a backstop for polls nobody touches.
	p, err := repo.GetPollByShareableID(ctx, s.DB, shareableID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	if p.IsExpired(now) {
		if p.IsActive {
			if _, err := repo.DeactivatePoll(ctx, s.DB, p.ID); err != nil {
				return nil, err
			}
		}
		return nil, ErrPollExpired
	}
	if !p.IsActive {
		return nil, ErrPollInactive
	}

	if optionIndex < 0 || optionIndex >= len(p.Options) {
		return nil, ErrInvalidOption
	}

	// Guard membership check: reject duplicates before mutating counters.
	voted, err := repo.HasVoted(ctx, s.DB, p.ID, voterID, now)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, ErrDuplicateVote
	}

	// Atomic increment, retried a bounded number of times on transient store
	// failures. A timed-out apply is treated as failed: no guard entry is
	// written and the vote is not counted (fail-closed, safe to retry).
	if err := s.applyWithRetry(ctx, p.ID, optionIndex, now); err != nil {
		return nil, err
	}
	votesApplied.WithLabelValues(p.ShareableID).Inc()

	// Guard record only after a confirmed apply, so a failed apply never
	// marks a voter as having voted. Recording is best-effort: a miss here
	// widens the duplicate window but never loses a counted vote.
	ttl := s.GuardTTL
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	if err := repo.RecordVote(ctx, s.DB, p.ID, voterID, ttl, now); err != nil {
		log.Error().Err(err).
			Str("shareable_id", p.ShareableID).
			Str("voter_id", voterID).
			Msg("vote guard record failed")
	}

	// Reload for the post-increment counters and fan out.
	p, err = repo.GetPollByShareableID(ctx, s.DB, shareableID)
	if err != nil {
		return nil, err
	}
	snap := domain.BuildSnapshot(p, time.Now().UTC())

	if s.Broadcast != nil {
		s.Broadcast.BroadcastSnapshot(ctx, shareableID)
	}
	return snap, nil
}

// applyWithRetry runs the atomic increment, retrying transient store errors
// with a short pause. Business failures (closed poll, bad index) are mapped
// to service sentinels and never retried.
func (s *VoteService) applyWithRetry(ctx context.Context, pollID string, optionIndex int, now time.Time) error {
	attempts := s.ApplyRetries
	if attempts <= 0 {
		attempts = 3
	}
	backoff := s.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		err := repo.ApplyVote(ctx, s.DB, pollID, optionIndex, now)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repo.ErrNotFound):
			return ErrPollNotFound
		case errors.Is(err, repo.ErrPollClosed):
			// Raced to expiry between the load and the apply.
			return ErrPollExpired
		case errors.Is(err, repo.ErrNoSuchOption):
			return ErrInvalidOption
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	log.Error().Err(lastErr).Str("poll_id", pollID).Msg("vote apply exhausted retries")
	return ErrStoreUnavailable
}
