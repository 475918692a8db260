// Package services – PollService
//
// This file implements the PollService, which manages the poll lifecycle:
// creation with validation and sanitization, public reads with lazy expiry
// enforcement, manual deactivation with idempotent outcomes, and the
// creator-only analytics views. Service-level errors (e.g. ErrPollNotFound,
// validation sentinels) are returned for predictable cases so handlers can
// map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-poll-backend/internal/domain"
	"github.com/tbourn/go-poll-backend/internal/repo"
	"github.com/tbourn/go-poll-backend/internal/utils"
)

// DeactivateOutcome describes what a manual deactivation call actually did,
// so the handler can phrase the response (and pick 200 vs 410).
type DeactivateOutcome int

const (
	// DeactivatedNow means this call performed the active→inactive transition.
	DeactivatedNow DeactivateOutcome = iota
	// AlreadyDeactivated means the poll was manually closed earlier; no-op.
	AlreadyDeactivated
	// AlreadyExpired means the poll ran out naturally before this call; no-op.
	AlreadyExpired
)

// PollService provides poll lifecycle operations. It enforces creation
// bounds, option uniqueness, and ownership constraints, and is the single
// place that flips expired polls to inactive on read paths.
type PollService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// ClientURL is the public base URL used to build shareable links.
	ClientURL string
	// Broadcast pushes the terminal state to live subscribers when a poll is
	// closed manually. Optional; nil disables real-time pushes.
	Broadcast Broadcaster
}

// NewPollService constructs a PollService.
func NewPollService(db *gorm.DB, clientURL string) *PollService {
	return &PollService{DB: db, ClientURL: clientURL}
}

// Create validates and persists a new poll owned by creatorID.
//
// Validation:
//   - question non-blank and ≤500 chars
//   - 2..6 options, each non-blank and ≤200 chars
//   - no two options equal after trimming, case folding, and NFC
//     normalization (checked on the pre-sanitized text)
//   - duration in 1..43200 minutes
//
// Question and option texts are HTML-escaped before storage. The poll starts
// active with endTime = now + duration.
func (s *PollService) Create(ctx context.Context, creatorID, creatorIP, question string, options []string, durationMinutes int) (*domain.Poll, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrQuestionRequired
	}
	if utf8.RuneCountInString(question) > domain.MaxQuestionLen {
		return nil, ErrQuestionTooLong
	}
	if len(options) < domain.MinOptions || len(options) > domain.MaxOptions {
		return nil, ErrOptionCount
	}
	if durationMinutes < domain.MinDurationMin || durationMinutes > domain.MaxDurationMin {
		return nil, ErrDurationRange
	}

	seen := make(map[string]struct{}, len(options))
	trimmed := make([]string, len(options))
	for i, opt := range options {
		t := strings.TrimSpace(opt)
		if t == "" {
			return nil, ErrOptionEmpty
		}
		if utf8.RuneCountInString(t) > domain.MaxOptionLen {
			return nil, ErrOptionTooLong
		}
		key := normalizeOptionKey(t)
		if _, dup := seen[key]; dup {
			return nil, ErrOptionDuplicate
		}
		seen[key] = struct{}{}
		trimmed[i] = t
	}

	now := time.Now().UTC()
	duration := time.Duration(durationMinutes) * time.Minute
	p := &domain.Poll{
		ID:          uuid.NewString(),
		ShareableID: utils.NewShareableID(),
		Question:    utils.SanitizeInput(question),
		TotalVotes:  0,
		Duration:    duration,
		CreatedAt:   now,
		EndTime:     now.Add(duration),
		IsActive:    true,
		CreatorID:   creatorID,
		CreatorIP:   creatorIP,
	}
	p.Options = make([]domain.PollOption, len(trimmed))
	for i, t := range trimmed {
		p.Options[i] = domain.PollOption{PollID: p.ID, Idx: i, Text: utils.SanitizeInput(t)}
	}

	if err := repo.CreatePoll(ctx, s.DB, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByShareableID returns the poll for a public shareable id, flipping it to
// inactive first if it has silently expired. Returns ErrPollNotFound for an
// unknown id.
func (s *PollService) GetByShareableID(ctx context.Context, shareableID string) (*domain.Poll, error) {
	p, err := repo.GetPollByShareableID(ctx, s.DB, shareableID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	return s.CheckAndDeactivate(ctx, p)
}

// CheckAndDeactivate persists isActive=false when the poll has expired but is
// still flagged active, and returns the (possibly updated) snapshot. Calling
// it on an already-inactive or still-running poll is a no-op.
func (s *PollService) CheckAndDeactivate(ctx context.Context, p *domain.Poll) (*domain.Poll, error) {
	if !p.IsActive || !p.IsExpired(time.Now().UTC()) {
		return p, nil
	}
	if _, err := repo.DeactivatePoll(ctx, s.DB, p.ID); err != nil {
		return nil, err
	}
	// Losing the race to another deactivator still ends at the same state.
	p.IsActive = false
	return p, nil
}

// Deactivate closes a poll manually on behalf of its owner. The operation is
// idempotent; the outcome tells the caller whether this call changed state,
// the poll was already manually closed, or it had already expired naturally.
// Non-owners get ErrPollNotFound rather than a permission error.
func (s *PollService) Deactivate(ctx context.Context, creatorID, shareableID string) (*domain.Poll, DeactivateOutcome, error) {
	p, err := repo.GetOwnedPoll(ctx, s.DB, shareableID, creatorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, 0, ErrPollNotFound
		}
		return nil, 0, err
	}

	now := time.Now().UTC()
	if p.IsExpired(now) {
		if _, err := s.CheckAndDeactivate(ctx, p); err != nil {
			return nil, 0, err
		}
		return p, AlreadyExpired, nil
	}
	if !p.IsActive {
		return p, AlreadyDeactivated, nil
	}

	if _, err := repo.DeactivatePoll(ctx, s.DB, p.ID); err != nil {
		return nil, 0, err
	}
	p.IsActive = false

	// Subscribers watching the poll learn about the manual close the same way
	// they learn about natural expiry: a final snapshot, then the terminal
	// event.
	if s.Broadcast != nil {
		s.Broadcast.BroadcastSnapshot(ctx, p.ShareableID)
		s.Broadcast.BroadcastExpired(ctx, p.ShareableID)
	}
	return p, DeactivatedNow, nil
}

// Snapshot recomputes the full broadcastable state of a poll, enforcing lazy
// expiry on the way. This is what the real-time hub pushes to subscribers.
func (s *PollService) Snapshot(ctx context.Context, shareableID string) (*domain.Snapshot, error) {
	p, err := s.GetByShareableID(ctx, shareableID)
	if err != nil {
		return nil, err
	}
	return domain.BuildSnapshot(p, time.Now().UTC()), nil
}

// ShareableURL builds the public link for a poll from the configured client
// base URL.
func (s *PollService) ShareableURL(shareableID string) string {
	base := strings.TrimRight(s.ClientURL, "/")
	return base + "/poll/" + shareableID
}

// Stats returns the creator's poll count and the latest poll update
// timestamp. These are the change-detection inputs for conditional dashboard
// responses.
func (s *PollService) Stats(ctx context.Context, creatorID string) (int64, *time.Time, error) {
	return repo.PollsStats(ctx, s.DB, creatorID)
}

// ListPage returns a page of the creator's polls matching the filter, plus
// the total count for pagination metadata.
func (s *PollService) ListPage(ctx context.Context, creatorID string, f repo.PollFilter, page, pageSize int) ([]domain.Poll, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 6
	}
	now := time.Now().UTC()

	total, err := repo.CountPolls(ctx, s.DB, creatorID, f, now)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Poll{}, 0, nil
	}

	items, err := repo.ListPollsPage(ctx, s.DB, creatorID, f, now, (page-1)*pageSize, pageSize)
	return items, total, err
}

// normalizeOptionKey produces the uniqueness key for an option text: trimmed,
// NFC-normalized, case-folded. Uniqueness is decided on the pre-sanitized
// text, so escaped variants of the same logical text collide.
func normalizeOptionKey(t string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(t)))
}
