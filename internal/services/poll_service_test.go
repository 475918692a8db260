package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-poll-backend/internal/domain"
	"github.com/tbourn/go-poll-backend/internal/repo"
)

// newSvcDB opens an isolated in-memory database with the full schema.
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:pollsvc_%s?mode=memory&cache=shared", uuid.NewString())
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

// mustCreate makes a standard two-option poll through the service.
func mustCreate(t *testing.T, s *PollService, creatorID string) *domain.Poll {
	t.Helper()
	p, err := s.Create(context.Background(), creatorID, "203.0.113.7", "Tea or coffee?", []string{"Tea", "Coffee"}, 60)
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	return p
}

// forceEndTime rewrites a poll's end time (and optionally the active flag)
// behind the service's back, to simulate the passage of time.
func forceEndTime(t *testing.T, db *gorm.DB, pollID string, end time.Time, active bool) {
	t.Helper()
	err := db.Model(&domain.Poll{}).Where("id = ?", pollID).
		Updates(map[string]any{"end_time": end, "is_active": active}).Error
	if err != nil {
		t.Fatalf("force end time: %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	s := NewPollService(newSvcDB(t), "http://localhost:3000")
	ctx := context.Background()

	two := []string{"Tea", "Coffee"}
	cases := []struct {
		name     string
		question string
		options  []string
		duration int
		want     error
	}{
		{"blank question", "   ", two, 60, ErrQuestionRequired},
		{"question too long", strings.Repeat("q", 501), two, 60, ErrQuestionTooLong},
		{"one option", "Q?", []string{"Tea"}, 60, ErrOptionCount},
		{"seven options", "Q?", []string{"a", "b", "c", "d", "e", "f", "g"}, 60, ErrOptionCount},
		{"blank option", "Q?", []string{"Tea", "  "}, 60, ErrOptionEmpty},
		{"option too long", "Q?", []string{"Tea", strings.Repeat("o", 201)}, 60, ErrOptionTooLong},
		{"duplicate options", "Q?", []string{"Tea", "Coffee", " tea "}, 60, ErrOptionDuplicate},
		{"duration zero", "Q?", two, 0, ErrDurationRange},
		{"duration too long", "Q?", two, 43201, ErrDurationRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(ctx, "owner-1", "203.0.113.7", tc.question, tc.options, tc.duration)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v; want %v", err, tc.want)
			}
		})
	}
}

func TestCreate_Boundaries(t *testing.T) {
	s := NewPollService(newSvcDB(t), "http://localhost:3000")
	ctx := context.Background()

	// All of these sit exactly on a limit and must pass.
	cases := []struct {
		name     string
		question string
		options  []string
		duration int
	}{
		{"two options", "Q?", []string{"a", "b"}, 60},
		{"six options", "Q?", []string{"a", "b", "c", "d", "e", "f"}, 60},
		{"question at max length", strings.Repeat("q", 500), []string{"a", "b"}, 60},
		{"option at max length", "Q?", []string{strings.Repeat("o", 200), "b"}, 60},
		{"one minute", "Q?", []string{"a", "b"}, 1},
		{"thirty days", "Q?", []string{"a", "b"}, 43200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Create(ctx, "owner-1", "203.0.113.7", tc.question, tc.options, tc.duration); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreate_PersistsAndSanitizes(t *testing.T) {
	db := newSvcDB(t)
	s := NewPollService(db, "http://localhost:3000")
	ctx := context.Background()

	p, err := s.Create(ctx, "owner-1", "203.0.113.7", "<b>Tea?</b>", []string{"Tea & biscuits", "Coffee"}, 120)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(p.ShareableID) != 8 {
		t.Fatalf("shareable id %q; want 8 hex chars", p.ShareableID)
	}
	if !p.IsActive || p.TotalVotes != 0 {
		t.Fatalf("new poll should start active with zero votes: %+v", p)
	}
	if strings.Contains(p.Question, "<") {
		t.Fatalf("question not escaped: %q", p.Question)
	}
	if !strings.Contains(p.Options[0].Text, "&amp;") {
		t.Fatalf("option not escaped: %q", p.Options[0].Text)
	}
	if want := p.CreatedAt.Add(2 * time.Hour); !p.EndTime.Equal(want) {
		t.Fatalf("end time %v; want createdAt+2h %v", p.EndTime, want)
	}

	// Round-trips through the public read path.
	got, err := s.GetByShareableID(ctx, p.ShareableID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != p.ID || len(got.Options) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestGetByShareableID_NotFound(t *testing.T) {
	s := NewPollService(newSvcDB(t), "http://localhost:3000")
	if _, err := s.GetByShareableID(context.Background(), "deadbeef"); !errors.Is(err, ErrPollNotFound) {
		t.Fatalf("expected ErrPollNotFound, got %v", err)
	}
}

func TestGetByShareableID_FlipsExpiredPoll(t *testing.T) {
	db := newSvcDB(t)
	s := NewPollService(db, "http://localhost:3000")
	ctx := context.Background()

	p := mustCreate(t, s, "owner-1")
	forceEndTime(t, db, p.ID, time.Now().UTC().Add(-time.Minute), true)

	got, err := s.GetByShareableID(ctx, p.ShareableID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsActive {
		t.Fatalf("expired poll should come back inactive")
	}

	// The flip must be persisted, not just reflected in the returned value.
	var stored domain.Poll
	if err := db.Where("id = ?", p.ID).First(&stored).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.IsActive {
		t.Fatalf("expired poll still flagged active in storage")
	}
}

func TestDeactivate_Outcomes(t *testing.T) {
	db := newSvcDB(t)
	s := NewPollService(db, "http://localhost:3000")
	ctx := context.Background()

	p := mustCreate(t, s, "owner-1")

	// Non-owners must not learn the poll exists.
	if _, _, err := s.Deactivate(ctx, "owner-2", p.ShareableID); !errors.Is(err, ErrPollNotFound) {
		t.Fatalf("foreign deactivate: got %v; want ErrPollNotFound", err)
	}

	got, outcome, err := s.Deactivate(ctx, "owner-1", p.ShareableID)
	if err != nil || outcome != DeactivatedNow {
		t.Fatalf("first deactivate: outcome=%v err=%v", outcome, err)
	}
	if got.IsActive {
		t.Fatalf("returned poll still active")
	}

	_, outcome, err = s.Deactivate(ctx, "owner-1", p.ShareableID)
	if err != nil || outcome != AlreadyDeactivated {
		t.Fatalf("repeat deactivate: outcome=%v err=%v", outcome, err)
	}

	// A naturally expired poll reports that instead of a manual close.
	p2 := mustCreate(t, s, "owner-1")
	forceEndTime(t, db, p2.ID, time.Now().UTC().Add(-time.Minute), true)
	_, outcome, err = s.Deactivate(ctx, "owner-1", p2.ShareableID)
	if err != nil || outcome != AlreadyExpired {
		t.Fatalf("expired deactivate: outcome=%v err=%v", outcome, err)
	}
}

func TestDeactivate_BroadcastsTerminalState(t *testing.T) {
	db := newSvcDB(t)
	bc := &recordingBroadcaster{}
	s := NewPollService(db, "http://localhost:3000")
	s.Broadcast = bc
	ctx := context.Background()

	p := mustCreate(t, s, "owner-1")

	// A fresh manual close pushes a final snapshot and the terminal event to
	// the poll's subscribers.
	_, outcome, err := s.Deactivate(ctx, "owner-1", p.ShareableID)
	if err != nil || outcome != DeactivatedNow {
		t.Fatalf("deactivate: outcome=%v err=%v", outcome, err)
	}
	snaps, expired := bc.counts()
	if snaps != 1 || expired != 1 {
		t.Fatalf("broadcasts after close: snapshots=%d expired=%d; want 1 and 1", snaps, expired)
	}
	bc.mu.Lock()
	snapTopic, expiredTopic := bc.snapshots[0], bc.expired[0]
	bc.mu.Unlock()
	if snapTopic != p.ShareableID || expiredTopic != p.ShareableID {
		t.Fatalf("broadcast topics %q/%q; want %q", snapTopic, expiredTopic, p.ShareableID)
	}

	// Idempotent repeats stay silent.
	if _, outcome, err = s.Deactivate(ctx, "owner-1", p.ShareableID); err != nil || outcome != AlreadyDeactivated {
		t.Fatalf("repeat deactivate: outcome=%v err=%v", outcome, err)
	}
	if snaps, expired = bc.counts(); snaps != 1 || expired != 1 {
		t.Fatalf("repeat close broadcast again: snapshots=%d expired=%d", snaps, expired)
	}

	// A naturally expired poll is the sweeper's to announce, not this path's.
	p2 := mustCreate(t, s, "owner-1")
	forceEndTime(t, db, p2.ID, time.Now().UTC().Add(-time.Minute), true)
	if _, outcome, err = s.Deactivate(ctx, "owner-1", p2.ShareableID); err != nil || outcome != AlreadyExpired {
		t.Fatalf("expired deactivate: outcome=%v err=%v", outcome, err)
	}
	if snaps, expired = bc.counts(); snaps != 1 || expired != 1 {
		t.Fatalf("expired close broadcast: snapshots=%d expired=%d", snaps, expired)
	}
}

func TestStats(t *testing.T) {
	db := newSvcDB(t)
	s := NewPollService(db, "http://localhost:3000")
	ctx := context.Background()

	count, maxTS, err := s.Stats(ctx, "owner-1")
	if err != nil || count != 0 || maxTS != nil {
		t.Fatalf("empty stats: count=%d maxTS=%v err=%v", count, maxTS, err)
	}

	mustCreate(t, s, "owner-1")
	mustCreate(t, s, "owner-1")
	mustCreate(t, s, "owner-2")

	count, maxTS, err = s.Stats(ctx, "owner-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if count != 2 || maxTS == nil {
		t.Fatalf("stats: count=%d maxTS=%v; want 2 and non-nil", count, maxTS)
	}
}

func TestShareableURL(t *testing.T) {
	s := NewPollService(nil, "http://example.com/")
	if got := s.ShareableURL("abcd1234"); got != "http://example.com/poll/abcd1234" {
		t.Fatalf("got %q", got)
	}
}

func TestListPage_Defaults(t *testing.T) {
	db := newSvcDB(t)
	s := NewPollService(db, "http://localhost:3000")
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		mustCreate(t, s, "owner-1")
	}
	mustCreate(t, s, "owner-2")

	items, total, err := s.ListPage(ctx, "owner-1", repo.PollFilter{}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 8 {
		t.Fatalf("total = %d; want 8", total)
	}
	// Default page size is six.
	if len(items) != 6 {
		t.Fatalf("page length = %d; want 6", len(items))
	}

	items, _, err = s.ListPage(ctx, "owner-1", repo.PollFilter{}, 2, 6)
	if err != nil || len(items) != 2 {
		t.Fatalf("second page: %d items err=%v", len(items), err)
	}

	// A creator with no polls gets an empty page, not an error.
	items, total, err = s.ListPage(ctx, "owner-3", repo.PollFilter{}, 1, 6)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty creator: items=%d total=%d err=%v", len(items), total, err)
	}
}
