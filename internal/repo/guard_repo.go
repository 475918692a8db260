// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the duplicate-vote guard: a per-poll set
// of voter identities with a bounded retention window.
//
// The guard owns its own membership set and nothing else. Checking membership
// and incrementing the poll's counters are two separate atomic operations;
// sequencing them (and accepting the small check-then-act race that implies)
// is the vote pipeline's job, not the guard's.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-poll-backend/internal/domain"
)

// HasVoted reports whether voterID is in the poll's voter set with an
// unexpired retention window.
func HasVoted(ctx context.Context, db *gorm.DB, pollID, voterID string, now time.Time) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.VoteGuardEntry{}).
		Where("poll_id = ? AND voter_id = ? AND expires_at > ?", pollID, voterID, now).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordVote adds voterID to the poll's voter set. The retention window is
// anchored to the poll's first recorded vote: the first entry fixes
// expires_at at now+ttl, and every later entry copies that value instead of
// refreshing it.
//
// Recording an identity that is already present is a no-op: the composite
// primary key rejects the insert and RecordVote swallows the constraint
// error, so concurrent double-records do not surface as failures.
func RecordVote(ctx context.Context, db *gorm.DB, pollID, voterID string, ttl time.Duration, now time.Time) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expires := now.Add(ttl)
		var first domain.VoteGuardEntry
		err := tx.Where("poll_id = ?", pollID).Order("created_at asc").First(&first).Error
		switch {
		case err == nil:
			expires = first.ExpiresAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first vote for this poll anchors the window
		default:
			return err
		}

		entry := &domain.VoteGuardEntry{
			PollID:    pollID,
			VoterID:   voterID,
			CreatedAt: now,
			ExpiresAt: expires,
		}
		if err := tx.Create(entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
				return nil
			}
			return err
		}
		return nil
	})
}

// ClearPollGuard removes every guard entry for a poll. Pure storage hygiene
// (poll deletion housekeeping); correctness never depends on it.
func ClearPollGuard(ctx context.Context, db *gorm.DB, pollID string) error {
	return db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Delete(&domain.VoteGuardEntry{}).Error
}

// PurgeExpiredGuards deletes guard entries whose retention window has lapsed
// and returns how many were removed. The sweeper calls this periodically.
func PurgeExpiredGuards(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.VoteGuardEntry{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
