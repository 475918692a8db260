package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-poll-backend/internal/domain"
)

// newRepoDB opens an isolated in-memory database migrated with the full
// schema. The uuid in the DSN keeps parallel tests from sharing state.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:pollrepo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Poll{}, &domain.PollOption{}, &domain.VoteGuardEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedPoll(t *testing.T, db *gorm.DB, shareableID, creatorID string, endTime time.Time, active bool, options ...string) *domain.Poll {
	t.Helper()
	p := &domain.Poll{
		ID:          uuid.NewString(),
		ShareableID: shareableID,
		Question:    "Question for " + shareableID,
		Duration:    60,
		CreatedAt:   time.Now().UTC().Add(-time.Minute),
		EndTime:     endTime,
		IsActive:    active,
		CreatorID:   creatorID,
		CreatorIP:   "203.0.113.7",
	}
	for i, text := range options {
		p.Options = append(p.Options, domain.PollOption{PollID: p.ID, Idx: i, Text: text})
	}
	if err := CreatePoll(context.Background(), db, p); err != nil {
		t.Fatalf("seed poll %s: %v", shareableID, err)
	}
	return p
}

func TestGetPollByShareableID(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPoll(t, db, "aaaa1111", "owner-1", now.Add(time.Hour), true, "Tea", "Coffee")

	p, err := GetPollByShareableID(ctx, db, "aaaa1111")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(p.Options) != 2 || p.Options[0].Text != "Tea" || p.Options[1].Idx != 1 {
		t.Fatalf("options not loaded in position order: %+v", p.Options)
	}

	if _, err := GetPollByShareableID(ctx, db, "nope0000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetOwnedPoll_HidesForeignPolls(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPoll(t, db, "bbbb2222", "owner-1", now.Add(time.Hour), true, "A", "B")

	if _, err := GetOwnedPoll(ctx, db, "bbbb2222", "owner-1"); err != nil {
		t.Fatalf("owner should see own poll: %v", err)
	}
	// Existence must not leak to a different principal.
	if _, err := GetOwnedPoll(ctx, db, "bbbb2222", "owner-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign poll, got %v", err)
	}
}

func TestApplyVote_IncrementsBothCounters(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p := seedPoll(t, db, "cccc3333", "owner-1", now.Add(time.Hour), true, "Tea", "Coffee")

	if err := ApplyVote(ctx, db, p.ID, 1, now); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := ApplyVote(ctx, db, p.ID, 1, now); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := ApplyVote(ctx, db, p.ID, 0, now); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := GetPollByShareableID(ctx, db, "cccc3333")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.TotalVotes != 3 {
		t.Fatalf("total = %d; want 3", got.TotalVotes)
	}
	if got.Options[0].Votes != 1 || got.Options[1].Votes != 2 {
		t.Fatalf("option votes = [%d %d]; want [1 2]", got.Options[0].Votes, got.Options[1].Votes)
	}
}

func TestApplyVote_Failures(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := ApplyVote(ctx, db, "missing-poll", 0, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	inactive := seedPoll(t, db, "dddd4444", "owner-1", now.Add(time.Hour), false, "A", "B")
	if err := ApplyVote(ctx, db, inactive.ID, 0, now); !errors.Is(err, ErrPollClosed) {
		t.Fatalf("expected ErrPollClosed for inactive poll, got %v", err)
	}

	expired := seedPoll(t, db, "eeee5555", "owner-1", now.Add(-time.Minute), true, "A", "B")
	if err := ApplyVote(ctx, db, expired.ID, 0, now); !errors.Is(err, ErrPollClosed) {
		t.Fatalf("expected ErrPollClosed for past end time, got %v", err)
	}
}

func TestApplyVote_BadIndexRollsBack(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p := seedPoll(t, db, "ffff6666", "owner-1", now.Add(time.Hour), true, "A", "B")

	if err := ApplyVote(ctx, db, p.ID, 5, now); !errors.Is(err, ErrNoSuchOption) {
		t.Fatalf("expected ErrNoSuchOption, got %v", err)
	}

	// The total increment must have rolled back with the failed option update.
	got, err := GetPollByShareableID(ctx, db, "ffff6666")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.TotalVotes != 0 {
		t.Fatalf("total = %d after rollback; want 0", got.TotalVotes)
	}
}

func TestDeactivatePoll_ReportsTransition(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p := seedPoll(t, db, "gggg7777", "owner-1", now.Add(time.Hour), true, "A", "B")

	flipped, err := DeactivatePoll(ctx, db, p.ID)
	if err != nil || !flipped {
		t.Fatalf("first deactivate: flipped=%v err=%v", flipped, err)
	}
	// Second call is a no-op and says so.
	flipped, err = DeactivatePoll(ctx, db, p.ID)
	if err != nil || flipped {
		t.Fatalf("second deactivate: flipped=%v err=%v", flipped, err)
	}
	// Missing poll behaves like already-inactive.
	flipped, err = DeactivatePoll(ctx, db, "missing")
	if err != nil || flipped {
		t.Fatalf("missing poll: flipped=%v err=%v", flipped, err)
	}
}

func TestListExpiredActive(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPoll(t, db, "hhhh8888", "owner-1", now.Add(-time.Hour), true, "A", "B")  // stale, needs sweep
	seedPoll(t, db, "iiii9999", "owner-1", now.Add(-time.Hour), false, "A", "B") // already closed
	seedPoll(t, db, "jjjj0000", "owner-1", now.Add(time.Hour), true, "A", "B")   // still running

	polls, err := ListExpiredActive(ctx, db, now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(polls) != 1 || polls[0].ShareableID != "hhhh8888" {
		t.Fatalf("expected only the stale active poll, got %+v", polls)
	}
	if len(polls[0].Options) != 2 {
		t.Fatalf("expected options preloaded, got %+v", polls[0].Options)
	}
}

func TestListPollsPage_StatusFilters(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPoll(t, db, "kkkk1111", "owner-1", now.Add(time.Hour), true, "A", "B")   // active
	seedPoll(t, db, "llll2222", "owner-1", now.Add(-time.Hour), true, "A", "B")  // expired by time
	seedPoll(t, db, "mmmm3333", "owner-1", now.Add(time.Hour), false, "A", "B")  // deactivated early
	seedPoll(t, db, "nnnn4444", "owner-2", now.Add(time.Hour), true, "A", "B")   // someone else's

	cases := []struct {
		status string
		want   int
	}{
		{"all", 3},
		{"", 3},
		{"active", 1},
		{"expired", 2}, // time-expired plus manually closed
		{"inactive", 1},
	}
	for _, tc := range cases {
		f := PollFilter{Status: tc.status}
		total, err := CountPolls(ctx, db, "owner-1", f, now)
		if err != nil {
			t.Fatalf("count status=%q: %v", tc.status, err)
		}
		if int(total) != tc.want {
			t.Errorf("count status=%q = %d; want %d", tc.status, total, tc.want)
		}
		polls, err := ListPollsPage(ctx, db, "owner-1", f, now, 0, 10)
		if err != nil {
			t.Fatalf("list status=%q: %v", tc.status, err)
		}
		if len(polls) != tc.want {
			t.Errorf("list status=%q returned %d polls; want %d", tc.status, len(polls), tc.want)
		}
	}
}

func TestListPollsPage_SearchMatchesQuestionAndOptions(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p1 := seedPoll(t, db, "oooo5555", "owner-1", now.Add(time.Hour), true, "Tea", "Coffee")
	p1.Question = "Favourite hot drink?"
	if err := db.Save(p1).Error; err != nil {
		t.Fatalf("update question: %v", err)
	}
	seedPoll(t, db, "pppp6666", "owner-1", now.Add(time.Hour), true, "Cats", "Dogs")

	// Matches an option text.
	polls, err := ListPollsPage(ctx, db, "owner-1", PollFilter{Search: "Coffee"}, now, 0, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(polls) != 1 || polls[0].ShareableID != "oooo5555" {
		t.Fatalf("search by option text: got %+v", polls)
	}

	// Matches a question substring.
	polls, err = ListPollsPage(ctx, db, "owner-1", PollFilter{Search: "hot drink"}, now, 0, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(polls) != 1 || polls[0].ShareableID != "oooo5555" {
		t.Fatalf("search by question: got %+v", polls)
	}

	// No hit.
	polls, err = ListPollsPage(ctx, db, "owner-1", PollFilter{Search: "pizza"}, now, 0, 10)
	if err != nil || len(polls) != 0 {
		t.Fatalf("expected empty result, got %+v err=%v", polls, err)
	}
}

func TestListPollsPage_SortAndPagination(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mk := func(sid string, age time.Duration, votes int) {
		p := seedPoll(t, db, sid, "owner-1", now.Add(time.Hour), true, "A", "B")
		p.CreatedAt = now.Add(-age)
		p.TotalVotes = votes
		if err := db.Save(p).Error; err != nil {
			t.Fatalf("update %s: %v", sid, err)
		}
	}
	mk("qqqq7777", 3*time.Hour, 5)
	mk("rrrr8888", 2*time.Hour, 1)
	mk("ssss9999", 1*time.Hour, 9)

	order := func(f PollFilter) []string {
		polls, err := ListPollsPage(ctx, db, "owner-1", f, now, 0, 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		out := make([]string, len(polls))
		for i, p := range polls {
			out[i] = p.ShareableID
		}
		return out
	}

	if got := order(PollFilter{}); got[0] != "ssss9999" || got[2] != "qqqq7777" {
		t.Fatalf("default newest-first order wrong: %v", got)
	}
	if got := order(PollFilter{Sort: "oldest"}); got[0] != "qqqq7777" {
		t.Fatalf("oldest-first order wrong: %v", got)
	}
	if got := order(PollFilter{Sort: "most-votes"}); got[0] != "ssss9999" || got[1] != "qqqq7777" {
		t.Fatalf("most-votes order wrong: %v", got)
	}
	if got := order(PollFilter{Sort: "least-votes"}); got[0] != "rrrr8888" {
		t.Fatalf("least-votes order wrong: %v", got)
	}

	// Second page of size two.
	polls, err := ListPollsPage(ctx, db, "owner-1", PollFilter{}, now, 2, 2)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(polls) != 1 || polls[0].ShareableID != "qqqq7777" {
		t.Fatalf("pagination wrong: %+v", polls)
	}
}
