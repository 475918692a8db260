package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-poll-backend/internal/domain"
)

func TestHasVoted_RecordVoteRoundTrip(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ttl := 30 * 24 * time.Hour

	p := seedPoll(t, db, "gaaa1111", "owner-1", now.Add(time.Hour), true, "A", "B")

	voted, err := HasVoted(ctx, db, p.ID, "10.0.0.1", now)
	if err != nil || voted {
		t.Fatalf("fresh poll: voted=%v err=%v", voted, err)
	}

	if err := RecordVote(ctx, db, p.ID, "10.0.0.1", ttl, now); err != nil {
		t.Fatalf("record: %v", err)
	}

	voted, err = HasVoted(ctx, db, p.ID, "10.0.0.1", now)
	if err != nil || !voted {
		t.Fatalf("after record: voted=%v err=%v", voted, err)
	}
	// A different identity on the same poll is still free to vote.
	voted, err = HasVoted(ctx, db, p.ID, "10.0.0.2", now)
	if err != nil || voted {
		t.Fatalf("other voter: voted=%v err=%v", voted, err)
	}
}

func TestRecordVote_WindowAnchoredToFirstEntry(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ttl := 30 * 24 * time.Hour

	p := seedPoll(t, db, "gbbb2222", "owner-1", now.Add(time.Hour), true, "A", "B")

	if err := RecordVote(ctx, db, p.ID, "10.0.0.1", ttl, now); err != nil {
		t.Fatalf("first record: %v", err)
	}
	// A later vote must not extend the poll's retention window.
	if err := RecordVote(ctx, db, p.ID, "10.0.0.2", ttl, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("second record: %v", err)
	}

	var entries []domain.VoteGuardEntry
	if err := db.Where("poll_id = ?", p.ID).Order("created_at asc").Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[1].ExpiresAt.Equal(entries[0].ExpiresAt) {
		t.Fatalf("second entry expires %v; want anchor %v", entries[1].ExpiresAt, entries[0].ExpiresAt)
	}
}

func TestRecordVote_DuplicateIsNoOp(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ttl := time.Hour

	p := seedPoll(t, db, "gccc3333", "owner-1", now.Add(time.Hour), true, "A", "B")

	if err := RecordVote(ctx, db, p.ID, "10.0.0.1", ttl, now); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := RecordVote(ctx, db, p.ID, "10.0.0.1", ttl, now.Add(time.Minute)); err != nil {
		t.Fatalf("duplicate record should be swallowed, got %v", err)
	}

	var n int64
	if err := db.Model(&domain.VoteGuardEntry{}).Where("poll_id = ?", p.ID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 entry, got %d", n)
	}
}

func TestHasVoted_LapsedWindowClears(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p := seedPoll(t, db, "gddd4444", "owner-1", now.Add(time.Hour), true, "A", "B")

	if err := RecordVote(ctx, db, p.ID, "10.0.0.1", time.Hour, now); err != nil {
		t.Fatalf("record: %v", err)
	}
	voted, err := HasVoted(ctx, db, p.ID, "10.0.0.1", now.Add(2*time.Hour))
	if err != nil || voted {
		t.Fatalf("lapsed window should not count: voted=%v err=%v", voted, err)
	}
}

func TestPurgeExpiredGuards(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p1 := seedPoll(t, db, "geee5555", "owner-1", now.Add(time.Hour), true, "A", "B")
	p2 := seedPoll(t, db, "gfff6666", "owner-1", now.Add(time.Hour), true, "A", "B")

	if err := RecordVote(ctx, db, p1.ID, "10.0.0.1", time.Hour, now); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := RecordVote(ctx, db, p2.ID, "10.0.0.1", 48*time.Hour, now); err != nil {
		t.Fatalf("record: %v", err)
	}

	removed, err := PurgeExpiredGuards(ctx, db, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d; want 1", removed)
	}
	voted, err := HasVoted(ctx, db, p2.ID, "10.0.0.1", now.Add(2*time.Hour))
	if err != nil || !voted {
		t.Fatalf("long-window entry should survive: voted=%v err=%v", voted, err)
	}
}

func TestClearPollGuard(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p := seedPoll(t, db, "gggg7777x", "owner-1", now.Add(time.Hour), true, "A", "B")

	if err := RecordVote(ctx, db, p.ID, "10.0.0.1", time.Hour, now); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := RecordVote(ctx, db, p.ID, "10.0.0.2", time.Hour, now); err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := ClearPollGuard(ctx, db, p.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	var n int64
	if err := db.Model(&domain.VoteGuardEntry{}).Where("poll_id = ?", p.ID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected guard emptied, got %d entries", n)
	}
}
