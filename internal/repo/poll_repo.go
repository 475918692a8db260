// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Poll
// aggregate.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition, with one deliberate exception: ApplyVote
// owns the atomic counter increment, because the one-atomic-operation contract
// is a storage concern, not a service concern.
//
// Error semantics:
//   - When a poll is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - ApplyVote additionally returns ErrPollClosed / ErrNoSuchOption so the
//     caller can tell "raced to expiry" apart from "bad index".
//   - On other DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-poll-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

var (
	// ErrPollClosed is returned by ApplyVote when the poll exists but no
	// longer accepts votes (deactivated, or past its end time at the store).
	ErrPollClosed = errors.New("poll is closed")

	// ErrNoSuchOption is returned by ApplyVote when the option index does not
	// address an option row of the poll.
	ErrNoSuchOption = errors.New("no such option")
)

// CreatePoll inserts a poll together with its option rows. The caller is
// responsible for populating IDs, timestamps, and the shareable id; a
// shareable-id collision surfaces as the driver's unique-constraint error.
func CreatePoll(ctx context.Context, db *gorm.DB, p *domain.Poll) error {
	return db.WithContext(ctx).Create(p).Error
}

// GetPollByShareableID fetches a poll by its public shareable id, with options
// ordered by position. Returns ErrNotFound if missing.
func GetPollByShareableID(ctx context.Context, db *gorm.DB, shareableID string) (*domain.Poll, error) {
	var p domain.Poll
	err := db.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("idx asc") }).
		Where("shareable_id = ?", shareableID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOwnedPoll fetches a poll by shareable id, enforcing that creatorID owns
// it. A poll that exists but belongs to someone else reports ErrNotFound, so
// callers do not leak existence to non-owners.
func GetOwnedPoll(ctx context.Context, db *gorm.DB, shareableID, creatorID string) (*domain.Poll, error) {
	var p domain.Poll
	err := db.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("idx asc") }).
		Where("shareable_id = ? AND creator_id = ?", shareableID, creatorID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ApplyVote atomically increments the vote counter of options[optionIndex]
// and the poll's total, guarded by the poll still accepting votes at the
// store. Both increments run as `SET votes = votes + 1` inside one
// transaction; there is no read-modify-write in application memory, so
// concurrent callers cannot lose updates.
//
// Returns ErrNotFound if the poll does not exist, ErrPollClosed if it exists
// but is inactive or past its end time, and ErrNoSuchOption for an index that
// addresses no option row (the transaction rolls back, leaving the total
// untouched).
func ApplyVote(ctx context.Context, db *gorm.DB, pollID string, optionIndex int, now time.Time) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Poll{}).
			Where("id = ? AND is_active = ? AND end_time > ?", pollID, true, now).
			Update("total_votes", gorm.Expr("total_votes + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&domain.Poll{}).Where("id = ?", pollID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}
			return ErrPollClosed
		}

		res = tx.Model(&domain.PollOption{}).
			Where("poll_id = ? AND idx = ?", pollID, optionIndex).
			Update("votes", gorm.Expr("votes + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoSuchOption
		}
		return nil
	})
}

// DeactivatePoll flips is_active to false for the given poll. It reports
// whether this call performed the transition: false means the poll was
// already inactive (or missing), making the operation idempotent for callers.
func DeactivatePoll(ctx context.Context, db *gorm.DB, pollID string) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Poll{}).
		Where("id = ? AND is_active = ?", pollID, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListExpiredActive returns all polls whose end time has passed but which are
// still flagged active in storage, options included. The sweeper uses this to
// find polls that no lazy read path has deactivated yet.
func ListExpiredActive(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Poll, error) {
	var out []domain.Poll
	err := db.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("idx asc") }).
		Where("end_time < ? AND is_active = ?", now, true).
		Find(&out).Error
	return out, err
}

// PollFilter narrows and orders dashboard listings.
type PollFilter struct {
	Status string // "all" | "active" | "expired" | "inactive"
	Search string // substring match on question or option text
	Sort   string // "newest" | "oldest" | "most-votes" | "least-votes"
}

// CountPolls returns the number of polls owned by creatorID matching the
// filter.
func CountPolls(ctx context.Context, db *gorm.DB, creatorID string, f PollFilter, now time.Time) (int64, error) {
	var total int64
	err := filteredPolls(db.WithContext(ctx), creatorID, f, now).Count(&total).Error
	return total, err
}

// ListPollsPage returns a page of polls owned by creatorID matching the
// filter, options included. Use CountPolls to obtain the total for pagination
// metadata.
func ListPollsPage(ctx context.Context, db *gorm.DB, creatorID string, f PollFilter, now time.Time, offset, limit int) ([]domain.Poll, error) {
	var out []domain.Poll
	err := filteredPolls(db.WithContext(ctx), creatorID, f, now).
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("idx asc") }).
		Order(sortClause(f.Sort)).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// filteredPolls composes the WHERE clause shared by CountPolls and
// ListPollsPage.
func filteredPolls(q *gorm.DB, creatorID string, f PollFilter, now time.Time) *gorm.DB {
	q = q.Model(&domain.Poll{}).Where("creator_id = ?", creatorID)

	switch f.Status {
	case "active":
		q = q.Where("is_active = ? AND end_time > ?", true, now)
	case "expired":
		q = q.Where("is_active = ? OR end_time <= ?", false, now)
	case "inactive":
		q = q.Where("is_active = ? AND end_time > ?", false, now)
	}

	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where(
			"question LIKE ? OR id IN (SELECT poll_id FROM poll_options WHERE text LIKE ?)",
			like, like,
		)
	}
	return q
}

// sortClause maps a dashboard sort key to an ORDER BY clause, defaulting to
// newest-first.
func sortClause(sort string) string {
	switch sort {
	case "oldest":
		return "created_at asc"
	case "most-votes":
		return "total_votes desc"
	case "least-votes":
		return "total_votes asc"
	default:
		return "created_at desc"
	}
}
