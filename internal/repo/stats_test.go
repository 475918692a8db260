package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestPollsStats(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	count, maxTS, err := PollsStats(ctx, db, "owner-1")
	if err != nil {
		t.Fatalf("empty stats: %v", err)
	}
	if count != 0 || maxTS != nil {
		t.Fatalf("empty stats: count=%d maxTS=%v", count, maxTS)
	}

	seedPoll(t, db, "saaa1111", "owner-1", now.Add(time.Hour), true, "A", "B")
	p2 := seedPoll(t, db, "sbbb2222", "owner-1", now.Add(time.Hour), true, "A", "B")
	seedPoll(t, db, "sccc3333", "owner-2", now.Add(time.Hour), true, "A", "B")

	count, maxTS, err = PollsStats(ctx, db, "owner-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d; want 2", count)
	}
	if maxTS == nil {
		t.Fatal("maxTS nil with polls present")
	}

	// Touching a poll moves the high-water mark.
	if err := db.Model(p2).Update("total_votes", 5).Error; err != nil {
		t.Fatalf("touch: %v", err)
	}
	_, maxTS2, err := PollsStats(ctx, db, "owner-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if maxTS2 == nil || maxTS2.Before(*maxTS) {
		t.Fatalf("high-water mark did not advance: %v -> %v", maxTS, maxTS2)
	}
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polls.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// The schema is usable right away.
	now := time.Now().UTC()
	p := seedPoll(t, db, "oddd1234", "owner-1", now.Add(time.Hour), true, "A", "B")
	if err := ApplyVote(context.Background(), db, p.ID, 0, now); err != nil {
		t.Fatalf("apply on migrated schema: %v", err)
	}
}
