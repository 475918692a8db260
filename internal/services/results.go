// Package services – creator analytics views.
//
// This file builds the owner-only results payloads: the full analytics view
// for a single poll, the multi-poll summary, and the export representation.
// All derived numbers come from the pure lifecycle helpers in the domain
// package; this file only assembles them.
package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/tbourn/go-poll-backend/internal/domain"
	"github.com/tbourn/go-poll-backend/internal/repo"
)

// PollInfo identifies the poll inside a results payload.
type PollInfo struct {
	ID           string        `json:"id"`
	ShareableID  string        `json:"shareableId"`
	Question     string        `json:"question"`
	Status       domain.Status `json:"status"`
	IsActive     bool          `json:"isActive"`
	IsExpired    bool          `json:"isExpired"`
	ShareableURL string        `json:"shareableUrl"`
}

// Timing carries the poll's window and age.
type Timing struct {
	CreatedAt     time.Time     `json:"createdAt"`
	EndTime       time.Time     `json:"endTime"`
	Duration      time.Duration `json:"duration"`
	TimeRemaining string        `json:"timeRemaining"`
	AgeHours      float64       `json:"ageHours"`
	AgeDays       float64       `json:"ageDays"`
}

// VoteStats aggregates participation numbers.
type VoteStats struct {
	TotalVotes         int     `json:"totalVotes"`
	VotingRate         float64 `json:"votingRate"` // votes per hour
	ParticipationLevel string  `json:"participationLevel"`
}

// RankedOption is an option with its standing in the vote order.
type RankedOption struct {
	Rank       int    `json:"rank"`
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
	IsWinner   bool   `json:"isWinner"`
}

// Insights summarizes the shape of the vote distribution.
type Insights struct {
	HasVotes              bool    `json:"hasVotes"`
	OptionsCount          int     `json:"optionsCount"`
	AverageVotesPerOption float64 `json:"averageVotesPerOption"`
	MostPopularOption     string  `json:"mostPopularOption,omitempty"`
	LeastPopularOption    string  `json:"leastPopularOption,omitempty"`
	VoteDistribution      string  `json:"voteDistribution"`
}

// Results is the full analytics view for a single poll, owner-only.
type Results struct {
	PollInfo  PollInfo              `json:"pollInfo"`
	Timing    Timing                `json:"timing"`
	VoteStats VoteStats             `json:"voteStats"`
	Options   []domain.OptionResult `json:"options"`
	Ranked    []RankedOption        `json:"rankedResults"`
	Winner    *domain.Winner        `json:"winner"`
	Insights  Insights              `json:"insights"`
}

// Results computes the analytics view for a poll owned by creatorID.
// Expiry is enforced lazily before deriving anything. Returns ErrPollNotFound
// when the poll is missing or owned by someone else.
func (s *PollService) Results(ctx context.Context, creatorID, shareableID string) (*Results, error) {
	p, err := repo.GetOwnedPoll(ctx, s.DB, shareableID, creatorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	if _, err := s.CheckAndDeactivate(ctx, p); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ageHours := math.Max(1, now.Sub(p.CreatedAt).Hours())
	ranked := domain.Ranked(p.Options, p.TotalVotes)

	res := &Results{
		PollInfo: PollInfo{
			ID:           p.ID,
			ShareableID:  p.ShareableID,
			Question:     p.Question,
			Status:       domain.PollStatus(p, now),
			IsActive:     p.IsActive,
			IsExpired:    p.IsExpired(now),
			ShareableURL: s.ShareableURL(p.ShareableID),
		},
		Timing: Timing{
			CreatedAt:     p.CreatedAt,
			EndTime:       p.EndTime,
			Duration:      p.Duration,
			TimeRemaining: domain.FormatTimeRemaining(p.EndTime, now),
			AgeHours:      round1(ageHours),
			AgeDays:       round1(ageHours / 24),
		},
		VoteStats: VoteStats{
			TotalVotes:         p.TotalVotes,
			VotingRate:         round1(domain.VotingRate(p.TotalVotes, p.CreatedAt, now)),
			ParticipationLevel: domain.ParticipationLevel(p.TotalVotes),
		},
		Options: domain.Percentages(p.Options, p.TotalVotes),
		Winner:  domain.ComputeWinner(p.Options, p.TotalVotes),
	}

	res.Ranked = make([]RankedOption, len(ranked))
	for i, o := range ranked {
		res.Ranked[i] = RankedOption{
			Rank:       i + 1,
			Text:       o.Text,
			Votes:      o.Votes,
			Percentage: o.Percentage,
			IsWinner:   i == 0 && p.TotalVotes > 0,
		}
	}

	res.Insights = buildInsights(p, ranked)
	return res, nil
}

// buildInsights derives the distribution summary from the ranked options.
func buildInsights(p *domain.Poll, ranked []domain.OptionResult) Insights {
	in := Insights{
		HasVotes:         p.TotalVotes > 0,
		OptionsCount:     len(p.Options),
		VoteDistribution: "Varied",
	}
	if p.TotalVotes == 0 {
		return in
	}
	in.AverageVotesPerOption = round1(float64(p.TotalVotes) / float64(len(p.Options)))
	in.MostPopularOption = ranked[0].Text
	in.LeastPopularOption = ranked[len(ranked)-1].Text
	if ranked[0].Votes-ranked[len(ranked)-1].Votes <= 1 {
		in.VoteDistribution = "Even"
	}
	return in
}

// PollSummary is one row of the multi-poll results overview.
type PollSummary struct {
	ShareableID   string               `json:"shareableId"`
	Question      string               `json:"question"`
	TotalVotes    int                  `json:"totalVotes"`
	Status        domain.Status        `json:"status"`
	CreatedAt     time.Time            `json:"createdAt"`
	EndTime       time.Time            `json:"endTime"`
	TimeRemaining string               `json:"timeRemaining"`
	TopOption     *domain.OptionResult `json:"topOption"`
	ShareableURL  string               `json:"shareableUrl"`
}

// Summary returns a compact results overview over the creator's most recent
// polls. limit is clamped to 1..50; sortBy accepts the dashboard sort keys.
func (s *PollService) Summary(ctx context.Context, creatorID string, limit int, sortBy string) ([]PollSummary, error) {
	if limit < 1 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	polls, err := repo.ListPollsPage(ctx, s.DB, creatorID, repo.PollFilter{Sort: sortBy}, time.Now().UTC(), 0, limit)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]PollSummary, len(polls))
	for i := range polls {
		p := &polls[i]
		sum := PollSummary{
			ShareableID:   p.ShareableID,
			Question:      truncateQuestion(p.Question, 60),
			TotalVotes:    p.TotalVotes,
			Status:        domain.PollStatus(p, now),
			CreatedAt:     p.CreatedAt,
			EndTime:       p.EndTime,
			TimeRemaining: domain.FormatTimeRemaining(p.EndTime, now),
			ShareableURL:  s.ShareableURL(p.ShareableID),
		}
		if p.TotalVotes > 0 {
			ranked := domain.Ranked(p.Options, p.TotalVotes)
			top := ranked[0]
			sum.TopOption = &top
		}
		out[i] = sum
	}
	return out, nil
}

// ExportData is the JSON export envelope for a poll's results.
type ExportData struct {
	Poll struct {
		Question    string    `json:"question"`
		ShareableID string    `json:"shareableId"`
		CreatedAt   time.Time `json:"createdAt"`
		EndTime     time.Time `json:"endTime"`
		TotalVotes  int       `json:"totalVotes"`
		IsActive    bool      `json:"isActive"`
	} `json:"poll"`
	Results    []domain.OptionResult `json:"results"`
	ExportedAt time.Time             `json:"exportedAt"`
}

// Export returns the raw poll plus its per-option results for the export
// endpoint; the handler decides the serialization (JSON or CSV).
func (s *PollService) Export(ctx context.Context, creatorID, shareableID string) (*domain.Poll, *ExportData, error) {
	p, err := repo.GetOwnedPoll(ctx, s.DB, shareableID, creatorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrPollNotFound
		}
		return nil, nil, err
	}

	data := &ExportData{
		Results:    domain.Percentages(p.Options, p.TotalVotes),
		ExportedAt: time.Now().UTC(),
	}
	data.Poll.Question = p.Question
	data.Poll.ShareableID = p.ShareableID
	data.Poll.CreatedAt = p.CreatedAt
	data.Poll.EndTime = p.EndTime
	data.Poll.TotalVotes = p.TotalVotes
	data.Poll.IsActive = p.IsActive
	return p, data, nil
}

// truncateQuestion clips long questions for list views.
func truncateQuestion(q string, max int) string {
	r := []rune(q)
	if len(r) <= max {
		return q
	}
	return string(r[:max]) + "..."
}

// round1 rounds to one decimal place.
func round1(f float64) float64 { return math.Round(f*10) / 10 }
