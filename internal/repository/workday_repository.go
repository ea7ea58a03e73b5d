package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"workday/backend/internal/model"
)

// WorkdayRepository persists sessions and their activity segments. All
// mutating operations take a transaction so a toggle or pause commits its
// whole read-modify-write cycle atomically.
type WorkdayRepository struct {
	db *sql.DB
}

func NewWorkdayRepository(db *sql.DB) *WorkdayRepository {
	return &WorkdayRepository{db: db}
}

func (r *WorkdayRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (r *WorkdayRepository) CreateSessionTx(ctx context.Context, tx *sql.Tx, start time.Time) (int64, error) {
	result, err := tx.ExecContext(
		ctx,
		`INSERT INTO sessions (start) VALUES (?)`,
		start.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create session id: %w", err)
	}
	return id, nil
}

func (r *WorkdayRepository) CloseSessionTx(ctx context.Context, tx *sql.Tx, sessionID int64, end time.Time) error {
	result, err := tx.ExecContext(
		ctx,
		`UPDATE sessions SET "end" = ? WHERE id = ?`,
		end.UTC().Format(time.RFC3339Nano),
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("close session affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *WorkdayRepository) CreateSegmentTx(
	ctx context.Context,
	tx *sql.Tx,
	sessionID int64,
	start time.Time,
	end *time.Time,
	activity string,
) (int64, error) {
	var endValue interface{}
	if end != nil {
		endValue = end.UTC().Format(time.RFC3339Nano)
	}

	result, err := tx.ExecContext(
		ctx,
		`INSERT INTO segments (session_id, start, "end", activity) VALUES (?, ?, ?, ?)`,
		sessionID,
		start.UTC().Format(time.RFC3339Nano),
		endValue,
		activity,
	)
	if err != nil {
		return 0, fmt.Errorf("create segment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create segment id: %w", err)
	}
	return id, nil
}

func (r *WorkdayRepository) CloseSegmentTx(ctx context.Context, tx *sql.Tx, segmentID int64, end time.Time) error {
	result, err := tx.ExecContext(
		ctx,
		`UPDATE segments SET "end" = ? WHERE id = ?`,
		end.UTC().Format(time.RFC3339Nano),
		segmentID,
	)
	if err != nil {
		return fmt.Errorf("close segment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("close segment affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOpenSessionTx returns the single open session, or nil when every
// session is closed. Finding more than one open row returns
// ErrOpenSessionConflict.
func (r *WorkdayRepository) GetOpenSessionTx(ctx context.Context, tx *sql.Tx) (*model.Session, error) {
	rows, err := tx.QueryContext(
		ctx,
		`SELECT id, start, "end" FROM sessions WHERE "end" IS NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("get open session: %w", err)
	}
	defer rows.Close()

	var open []*model.Session
	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		open = append(open, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open sessions: %w", err)
	}

	switch len(open) {
	case 0:
		return nil, nil
	case 1:
		return open[0], nil
	default:
		return nil, ErrOpenSessionConflict
	}
}

func (r *WorkdayRepository) GetOpenSession(ctx context.Context) (*model.Session, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	return r.GetOpenSessionTx(ctx, tx)
}

// GetOpenSegmentTx returns the session's open segment, or nil if all of
// its segments are closed.
func (r *WorkdayRepository) GetOpenSegmentTx(ctx context.Context, tx *sql.Tx, sessionID int64) (*model.Segment, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT id, session_id, start, "end", activity
		 FROM segments
		 WHERE session_id = ? AND "end" IS NULL`,
		sessionID,
	)
	segment, err := scanSegment(row)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return segment, nil
}

func (r *WorkdayRepository) GetSegmentsForSessionTx(ctx context.Context, tx *sql.Tx, sessionID int64) ([]model.Segment, error) {
	rows, err := tx.QueryContext(
		ctx,
		`SELECT id, session_id, start, "end", activity
		 FROM segments
		 WHERE session_id = ?
		 ORDER BY start ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get segments: %w", err)
	}
	defer rows.Close()
	return collectSegments(rows)
}

func (r *WorkdayRepository) GetSegmentsForSession(ctx context.Context, sessionID int64) ([]model.Segment, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, session_id, start, "end", activity
		 FROM segments
		 WHERE session_id = ?
		 ORDER BY start ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get segments: %w", err)
	}
	defer rows.Close()
	return collectSegments(rows)
}

func (r *WorkdayRepository) GetLastClosedSession(ctx context.Context) (*model.Session, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, start, "end"
		 FROM sessions
		 WHERE "end" IS NOT NULL
		 ORDER BY "end" DESC
		 LIMIT 1`,
	)
	session, err := scanSession(row)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns sessions newest first, optionally bounded by a
// start-time range, for the history endpoint.
func (r *WorkdayRepository) ListSessions(ctx context.Context, limit, offset int, from, to *time.Time) ([]model.Session, error) {
	query := `SELECT id, start, "end" FROM sessions`
	args := make([]interface{}, 0, 4)
	conditions := ""
	if from != nil {
		conditions += ` WHERE start >= ?`
		args = append(args, from.UTC().Format(time.RFC3339Nano))
	}
	if to != nil {
		if conditions == "" {
			conditions += ` WHERE start <= ?`
		} else {
			conditions += ` AND start <= ?`
		}
		args = append(args, to.UTC().Format(time.RFC3339Nano))
	}
	query += conditions + ` ORDER BY start DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.Session, 0, limit)
	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (r *WorkdayRepository) CountSessions(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

func scanSession(s scanner) (*model.Session, error) {
	session := model.Session{}
	var start string
	var end sql.NullString
	if err := s.Scan(&session.ID, &start, &end); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	parsedStart, err := parseTime(start)
	if err != nil {
		return nil, fmt.Errorf("parse session start: %w", err)
	}
	session.Start = parsedStart

	if end.Valid {
		parsedEnd, parseErr := parseTime(end.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse session end: %w", parseErr)
		}
		session.End = &parsedEnd
	}

	return &session, nil
}

func scanSegment(s scanner) (*model.Segment, error) {
	segment := model.Segment{}
	var start string
	var end sql.NullString
	if err := s.Scan(&segment.ID, &segment.SessionID, &start, &end, &segment.Activity); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan segment: %w", err)
	}

	parsedStart, err := parseTime(start)
	if err != nil {
		return nil, fmt.Errorf("parse segment start: %w", err)
	}
	segment.Start = parsedStart

	if end.Valid {
		parsedEnd, parseErr := parseTime(end.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse segment end: %w", parseErr)
		}
		segment.End = &parsedEnd
	}

	return &segment, nil
}

func collectSegments(rows *sql.Rows) ([]model.Segment, error) {
	segments := make([]model.Segment, 0, 8)
	for rows.Next() {
		segment, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, *segment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return segments, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}
