// Lifecycle evaluation for polls.
//
// Everything in this file is a pure computation over a Poll snapshot and an
// explicit "now": derived status, human-readable time remaining, vote
// percentages, participation banding, voting rate, and winner/tie analysis.
// Keeping these free of I/O lets the broadcaster, the results endpoint, and
// the sweeper share one source of truth for derived state.
package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Status is the derived lifecycle state of a poll.
type Status string

const (
	// StatusActive means the poll accepts votes: isActive and not past endTime.
	StatusActive Status = "active"
	// StatusExpired means the poll's end time has passed (time-based closure).
	StatusExpired Status = "expired"
	// StatusDeactivated means the poll was closed manually before its natural end.
	StatusDeactivated Status = "deactivated"
)

// PollStatus computes the derived status of a poll at the given time.
// Expiry wins over the stored active flag: a poll past its end time reports
// expired even when the inactive flag has not been persisted yet.
func PollStatus(p *Poll, now time.Time) Status {
	switch {
	case p.IsExpired(now):
		return StatusExpired
	case !p.IsActive:
		return StatusDeactivated
	default:
		return StatusActive
	}
}

// FormatTimeRemaining renders the time until endTime as the coarsest nonzero
// unit pair: "Xd Yh", "Xh Ym", "Xm Ys", "Xs", or "Expired" when nothing
// remains.
func FormatTimeRemaining(endTime, now time.Time) string {
	left := endTime.Sub(now)
	if left <= 0 {
		return "Expired"
	}

	days := int(left.Hours()) / 24
	hours := int(left.Hours()) % 24
	minutes := int(left.Minutes()) % 60
	seconds := int(left.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// ParticipationLevel bands the total vote count. Boundaries are inclusive-low:
// a count falls in the first band whose lower bound it meets.
func ParticipationLevel(totalVotes int) string {
	switch {
	case totalVotes == 0:
		return "No votes yet"
	case totalVotes < 10:
		return "Low"
	case totalVotes < 50:
		return "Medium"
	case totalVotes < 100:
		return "High"
	default:
		return "Very High"
	}
}

// VotingRate returns votes per hour since creation. The age is floored at one
// hour so brand-new polls do not report absurd rates.
func VotingRate(totalVotes int, createdAt, now time.Time) float64 {
	if totalVotes == 0 {
		return 0
	}
	ageHours := math.Max(1, now.Sub(createdAt).Hours())
	return float64(totalVotes) / ageHours
}

// OptionResult is a poll option together with its share of the total vote.
type OptionResult struct {
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
}

// Percentages computes each option's integer percentage of totalVotes,
// rounded half away from zero. All percentages are zero when there are no
// votes.
func Percentages(options []PollOption, totalVotes int) []OptionResult {
	out := make([]OptionResult, len(options))
	for i, opt := range options {
		pct := 0
		if totalVotes > 0 {
			pct = int(math.Round(float64(opt.Votes) / float64(totalVotes) * 100))
		}
		out[i] = OptionResult{Index: opt.Idx, Text: opt.Text, Votes: opt.Votes, Percentage: pct}
	}
	return out
}

// Winner is the leading option of a poll, if any votes have been cast.
type Winner struct {
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
	IsTie      bool   `json:"isTie"`
}

// ComputeWinner returns the option with the most votes and whether it shares
// the maximum with at least one other option. It returns nil when the poll
// has no votes.
func ComputeWinner(options []PollOption, totalVotes int) *Winner {
	if totalVotes == 0 || len(options) == 0 {
		return nil
	}
	ranked := Ranked(options, totalVotes)
	top := ranked[0]
	tie := len(ranked) > 1 && ranked[1].Votes == top.Votes
	return &Winner{Text: top.Text, Votes: top.Votes, Percentage: top.Percentage, IsTie: tie}
}

// Ranked returns the options with percentages, sorted by votes descending.
// Ties keep their original option order (stable sort).
func Ranked(options []PollOption, totalVotes int) []OptionResult {
	out := Percentages(options, totalVotes)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Votes > out[j].Votes })
	return out
}

// Snapshot is the full current public state of a poll as pushed to real-time
// subscribers and returned by the vote endpoint.
type Snapshot struct {
	ID            string         `json:"id"`
	ShareableID   string         `json:"shareableId"`
	Question      string         `json:"question"`
	Options       []OptionResult `json:"options"`
	TotalVotes    int            `json:"totalVotes"`
	Status        Status         `json:"status"`
	IsActive      bool           `json:"isActive"`
	IsExpired     bool           `json:"isExpired"`
	EndTime       time.Time      `json:"endTime"`
	TimeRemaining string         `json:"timeRemaining"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// BuildSnapshot derives the broadcastable state of a poll at the given time.
func BuildSnapshot(p *Poll, now time.Time) *Snapshot {
	return &Snapshot{
		ID:            p.ID,
		ShareableID:   p.ShareableID,
		Question:      p.Question,
		Options:       Percentages(p.Options, p.TotalVotes),
		TotalVotes:    p.TotalVotes,
		Status:        PollStatus(p, now),
		IsActive:      p.IsActive,
		IsExpired:     p.IsExpired(now),
		EndTime:       p.EndTime,
		TimeRemaining: FormatTimeRemaining(p.EndTime, now),
		CreatedAt:     p.CreatedAt,
	}
}
