// Package domain defines the persistence models for polls, poll options, and
// the duplicate-vote guard. These types are mapped with GORM and form the core
// data layer of the polling application.
package domain

import (
	"time"
)

// Poll bounds enforced at creation time and re-checked on read paths that
// reconstruct a poll.
const (
	MaxQuestionLen = 500
	MaxOptionLen   = 200
	MinOptions     = 2
	MaxOptions     = 6
	MinDurationMin = 1
	MaxDurationMin = 43200 // 30 days
)

// Poll represents a multiple-choice poll. Each poll has an internal UUID
// primary key and a public 8-hex-char shareable id used in links; collisions
// on the shareable id are caught by the storage uniqueness constraint.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ShareableID: public opaque id (8 hex chars, unique).
//   - Question: the poll question (≤500 chars, HTML-escaped on write).
//   - Options: ordered options with live counters (2..6).
//   - TotalVotes: running total; invariant TotalVotes == sum(option votes).
//   - Duration: the voting window chosen at creation.
//   - CreatedAt / EndTime: timing window; EndTime > CreatedAt always.
//   - IsActive: voting gate; transitions true→false only, never back.
//   - CreatorID: owning principal; ownership gates deactivation/result views.
//   - CreatorIP: diagnostic only.
type Poll struct {
	ID          string        `json:"id"          gorm:"type:char(36);primaryKey"`
	ShareableID string        `json:"shareableId" gorm:"type:char(8);not null;uniqueIndex"`
	Question    string        `json:"question"    gorm:"type:varchar(500);not null"`
	Options     []PollOption  `json:"options"     gorm:"foreignKey:PollID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	TotalVotes  int           `json:"totalVotes"  gorm:"not null;default:0;check:total_votes >= 0"`
	Duration    time.Duration `json:"duration"    gorm:"not null"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"-"`
	EndTime     time.Time     `json:"endTime"     gorm:"not null;index"`
	IsActive    bool          `json:"isActive"    gorm:"not null;default:true;index"`
	CreatorID   string        `json:"-"           gorm:"type:varchar(64);not null;index:idx_creator_polls"`
	CreatorIP   string        `json:"-"           gorm:"type:varchar(64);not null"`
}

// TableName returns the database table name for Poll.
func (Poll) TableName() string { return "polls" }

// IsExpired reports whether the poll's end time has passed at the given time.
func (p *Poll) IsExpired(now time.Time) bool { return now.After(p.EndTime) }

// PollOption is a single answer choice within a poll. Options are addressed
// by their zero-based position (Idx); the position is stable for the life of
// the poll. The Votes counter is mutated only through the repo's atomic
// increment, never through read-modify-write in application memory.
type PollOption struct {
	PollID string `json:"-"     gorm:"type:char(36);not null;primaryKey"`
	Idx    int    `json:"index" gorm:"not null;primaryKey"`
	Text   string `json:"text"  gorm:"type:varchar(200);not null"`
	Votes  int    `json:"votes" gorm:"not null;default:0;check:votes >= 0"`
}

// TableName returns the database table name for PollOption.
func (PollOption) TableName() string { return "poll_options" }

// VoteGuardEntry marks that a voter identity has voted in a poll. The primary
// key (PollID, VoterID) makes duplicate inserts fail at the store, which is
// what the vote pipeline relies on for membership semantics.
//
// ExpiresAt carries the retention window. It is anchored to the poll's first
// recorded vote: the first insert for a poll fixes the window, later inserts
// copy it rather than refreshing it.
type VoteGuardEntry struct {
	PollID    string    `gorm:"type:char(36);not null;primaryKey"`
	VoterID   string    `gorm:"type:varchar(64);not null;primaryKey"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName returns the database table name for VoteGuardEntry.
func (VoteGuardEntry) TableName() string { return "vote_guard" }
