// Package services defines the business logic for polls, votes, and the
// expiry sweep. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Validation errors (client-correctable, 4xx).
var (
	// ErrQuestionRequired is returned when the poll question is missing or blank.
	ErrQuestionRequired = errors.New("poll question is required")

	// ErrQuestionTooLong is returned when the question exceeds 500 characters.
	ErrQuestionTooLong = errors.New("poll question must be at most 500 characters")

	// ErrOptionCount is returned when a poll has fewer than 2 or more than 6 options.
	ErrOptionCount = errors.New("poll must have between 2 and 6 options")

	// ErrOptionEmpty is returned when an option text is missing or blank.
	ErrOptionEmpty = errors.New("each option must be a non-empty string")

	// ErrOptionTooLong is returned when an option text exceeds 200 characters.
	ErrOptionTooLong = errors.New("each option must be at most 200 characters")

	// ErrOptionDuplicate is returned when two options collide after trimming
	// and case normalization.
	ErrOptionDuplicate = errors.New("poll options must be unique")

	// ErrDurationRange is returned when the duration is outside 1..43200 minutes.
	ErrDurationRange = errors.New("duration must be between 1 and 43200 minutes")
)

// Vote and lifecycle errors.
var (
	// ErrPollNotFound indicates that no poll exists for the given shareable id,
	// or that it is not accessible to the current principal.
	ErrPollNotFound = errors.New("poll not found")

	// ErrPollExpired is returned when a vote targets a poll past its end time.
	ErrPollExpired = errors.New("poll has expired")

	// ErrPollInactive is returned when a vote targets a poll that was closed
	// manually before its natural end.
	ErrPollInactive = errors.New("poll is no longer active")

	// ErrInvalidOption is returned when the option index does not address an
	// option of the poll.
	ErrInvalidOption = errors.New("invalid option index")

	// ErrDuplicateVote is returned when the voter identity has already voted
	// in this poll.
	ErrDuplicateVote = errors.New("you have already voted in this poll")

	// ErrStoreUnavailable is returned when the store keeps failing after the
	// pipeline's bounded retries. The whole vote is safe to retry from the top.
	ErrStoreUnavailable = errors.New("store unavailable, please retry")
)
