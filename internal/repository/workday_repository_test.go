package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"workday/backend/internal/db"
	"workday/backend/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if err := db.RunMigrations(database, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func TestGetOpenSessionConflict(t *testing.T) {
	database := newTestDB(t)
	repo := NewWorkdayRepository(database)
	ctx := context.Background()

	for _, start := range []string{"2026-08-27T09:00:00Z", "2026-08-27T10:00:00Z"} {
		if _, err := database.ExecContext(ctx, `INSERT INTO sessions (start) VALUES (?)`, start); err != nil {
			t.Fatalf("insert session: %v", err)
		}
	}

	_, err := repo.GetOpenSession(ctx)
	if err != ErrOpenSessionConflict {
		t.Fatalf("expected ErrOpenSessionConflict, got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	database := newTestDB(t)
	repo := NewWorkdayRepository(database)
	ctx := context.Background()
	start := time.Date(2026, 8, 27, 9, 0, 0, 123456789, time.UTC)
	end := start.Add(8 * time.Hour)

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	sessionID, err := repo.CreateSessionTx(ctx, tx, start)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	open, err := repo.GetOpenSession(ctx)
	if err != nil {
		t.Fatalf("get open session: %v", err)
	}
	if open == nil || open.ID != sessionID {
		t.Fatalf("expected open session %d, got %+v", sessionID, open)
	}
	if !open.Start.Equal(start) {
		t.Fatalf("start did not round-trip: want %v, got %v", start, open.Start)
	}

	tx, err = repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := repo.CloseSessionTx(ctx, tx, sessionID, end); err != nil {
		t.Fatalf("close session: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	open, err = repo.GetOpenSession(ctx)
	if err != nil {
		t.Fatalf("get open session after close: %v", err)
	}
	if open != nil {
		t.Fatalf("expected no open session, got %+v", open)
	}

	last, err := repo.GetLastClosedSession(ctx)
	if err != nil {
		t.Fatalf("get last closed session: %v", err)
	}
	if last == nil || last.End == nil || !last.End.Equal(end) {
		t.Fatalf("expected last closed session ending %v, got %+v", end, last)
	}
}

func TestSegmentsOrderedByStart(t *testing.T) {
	database := newTestDB(t)
	repo := NewWorkdayRepository(database)
	ctx := context.Background()
	base := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	sessionID, err := repo.CreateSessionTx(ctx, tx, base)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// Inserted out of chronological order on purpose.
	offsets := []time.Duration{time.Hour, 0, 30 * time.Minute}
	for _, offset := range offsets {
		start := base.Add(offset)
		end := start.Add(10 * time.Minute)
		if _, err := repo.CreateSegmentTx(ctx, tx, sessionID, start, &end, model.ActivityWorking); err != nil {
			t.Fatalf("create segment: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	segments, err := repo.GetSegmentsForSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("get segments: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	for i := 1; i < len(segments); i++ {
		if !segments[i-1].Start.Before(segments[i].Start) {
			t.Fatalf("segments not ordered by start: %v before %v", segments[i-1].Start, segments[i].Start)
		}
	}
}

func TestCloseSegmentNotFound(t *testing.T) {
	database := newTestDB(t)
	repo := NewWorkdayRepository(database)
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()

	if err := repo.CloseSegmentTx(ctx, tx, 9999, time.Now()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessionsRangeAndOrder(t *testing.T) {
	database := newTestDB(t)
	repo := NewWorkdayRepository(database)
	ctx := context.Background()
	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)

	for day := 0; day < 3; day++ {
		start := base.AddDate(0, 0, day)
		end := start.Add(8 * time.Hour)
		tx, err := repo.BeginTx(ctx)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}
		sessionID, err := repo.CreateSessionTx(ctx, tx, start)
		if err != nil {
			t.Fatalf("create session: %v", err)
		}
		if err := repo.CloseSessionTx(ctx, tx, sessionID, end); err != nil {
			t.Fatalf("close session: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	sessions, err := repo.ListSessions(ctx, 10, 0, nil, nil)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i-1].Start.Before(sessions[i].Start) {
			t.Fatal("sessions not ordered newest first")
		}
	}

	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 1).Add(time.Hour)
	filtered, err := repo.ListSessions(ctx, 10, 0, &from, &to)
	if err != nil {
		t.Fatalf("list sessions with range: %v", err)
	}
	if len(filtered) != 1 || !filtered[0].Start.Equal(from) {
		t.Fatalf("expected the single middle session, got %+v", filtered)
	}

	count, err := repo.CountSessions(ctx)
	if err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestSubscriberLifecycle(t *testing.T) {
	database := newTestDB(t)
	repo := NewSubscriberRepository(database)
	ctx := context.Background()

	sub := &model.Subscriber{
		Endpoint:               "https://push.example.com/x",
		Auth:                   "auth",
		P256dh:                 "p256dh",
		IntervalSeconds:        600,
		TargetNotificationTime: 600,
	}
	if _, err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.UpdateTargetByEndpoint(ctx, sub.Endpoint, 1200); err != nil {
		t.Fatalf("update target: %v", err)
	}

	due, err := repo.ListDue(ctx, 1200)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due subscriber at the boundary, got %d", len(due))
	}

	due, err = repo.ListDue(ctx, 1199)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no due subscribers below the target, got %d", len(due))
	}

	if err := repo.ResetTargetsToInterval(ctx); err != nil {
		t.Fatalf("reset targets: %v", err)
	}
	got, err := repo.GetByEndpoint(ctx, sub.Endpoint)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TargetNotificationTime != 600 {
		t.Fatalf("expected target reset to interval, got %d", got.TargetNotificationTime)
	}

	deleted, err := repo.DeleteByEndpoint(ctx, sub.Endpoint)
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = repo.DeleteByEndpoint(ctx, sub.Endpoint)
	if err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}
}
