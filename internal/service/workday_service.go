package service

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"workday/backend/internal/broadcast"
	apperrors "workday/backend/internal/errors"
	"workday/backend/internal/model"
	"workday/backend/internal/repository"
)

// Broadcaster publishes a snapshot to all connected live viewers.
type Broadcaster interface {
	Publish(event string, payload interface{})
}

// WorkdayService is the workday state machine: it serializes toggle and
// pause actions into valid session/segment transitions and announces
// every committed change on the broadcast channel.
type WorkdayService struct {
	repo        *repository.WorkdayRepository
	subscribers *repository.SubscriberRepository
	broadcaster Broadcaster
	logger      *slog.Logger
	now         func() time.Time

	// mu serializes the read-modify-write cycle of toggle/pause so two
	// concurrent actions cannot both observe the same open session.
	mu sync.Mutex
}

// Snapshot is the wire representation of the workday: the open session,
// or the last closed one, or null-filled fields when none exists yet.
// Segments is always present, possibly empty.
type Snapshot struct {
	StartTime *time.Time    `json:"start_time"`
	EndTime   *time.Time    `json:"end_time"`
	Segments  []SegmentView `json:"segments"`
}

type SegmentView struct {
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Activity  string     `json:"activity"`
}

func NewWorkdayService(
	repo *repository.WorkdayRepository,
	subscribers *repository.SubscriberRepository,
	broadcaster Broadcaster,
	logger *slog.Logger,
) *WorkdayService {
	return &WorkdayService{
		repo:        repo,
		subscribers: subscribers,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// Toggle opens a new session when none is open, or closes the open one.
// The timestamp is persisted exactly as given.
func (s *WorkdayService) Toggle(ctx context.Context, timestamp time.Time) (*Snapshot, *apperrors.APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	open, apiErr := s.openSession(ctx, tx)
	if apiErr != nil {
		return nil, apiErr
	}

	var snapshot *Snapshot
	opened := open == nil
	if open == nil {
		snapshot, apiErr = s.openWorkday(ctx, tx, timestamp)
	} else {
		snapshot, apiErr = s.closeWorkday(ctx, tx, open, timestamp)
	}
	if apiErr != nil {
		return nil, apiErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	if opened {
		// A fresh workday starts counting from zero, so stale targets
		// from the previous session must not trigger the first reminder.
		if err := s.subscribers.ResetTargetsToInterval(ctx); err != nil {
			s.logger.Error("reset subscriber targets", "error", err)
		}
	}

	s.broadcaster.Publish(broadcast.EventWorkdayUpdate, snapshot)
	return snapshot, nil
}

// Pause flips the open session between working and on-break by closing
// the open segment and opening one of the opposite activity. Pausing a
// closed workday is a client error, not a silent no-op.
func (s *WorkdayService) Pause(ctx context.Context, timestamp time.Time) (*Snapshot, *apperrors.APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	open, apiErr := s.openSession(ctx, tx)
	if apiErr != nil {
		return nil, apiErr
	}
	if open == nil {
		return nil, apperrors.Conflict("no_open_session", "no workday is open")
	}

	segment, err := s.repo.GetOpenSegmentTx(ctx, tx, open.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to get open segment")
	}
	if segment == nil {
		s.logger.Error("open session has no open segment", "sessionId", open.ID)
		return nil, apperrors.StoreIntegrity("open session has no open segment")
	}

	var nextActivity string
	switch segment.Activity {
	case model.ActivityWorking:
		nextActivity = model.ActivityOnBreak
	case model.ActivityOnBreak:
		nextActivity = model.ActivityWorking
	default:
		s.logger.Error("open segment has unknown activity", "sessionId", open.ID, "activity", segment.Activity)
		return nil, apperrors.StoreIntegrity("open segment has unknown activity")
	}

	if err := s.repo.CloseSegmentTx(ctx, tx, segment.ID, timestamp); err != nil {
		return nil, apperrors.Internal("failed to close segment")
	}
	if _, err := s.repo.CreateSegmentTx(ctx, tx, open.ID, timestamp, nil, nextActivity); err != nil {
		return nil, apperrors.Internal("failed to create segment")
	}

	snapshot, apiErr := s.snapshotTx(ctx, tx, open)
	if apiErr != nil {
		return nil, apiErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	s.broadcaster.Publish(broadcast.EventWorkdayUpdate, snapshot)
	return snapshot, nil
}

// CurrentSnapshot returns the open session, or the last closed one for
// display, or a null-filled snapshot when no session ever existed.
func (s *WorkdayService) CurrentSnapshot(ctx context.Context) (*Snapshot, *apperrors.APIError) {
	open, err := s.repo.GetOpenSession(ctx)
	if err == repository.ErrOpenSessionConflict {
		s.logger.Error("store integrity violation", "error", err)
		return nil, apperrors.StoreIntegrity("more than one open session found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get open session")
	}

	session := open
	if session == nil {
		last, lastErr := s.repo.GetLastClosedSession(ctx)
		if lastErr != nil {
			return nil, apperrors.Internal("failed to get last closed session")
		}
		session = last
	}
	if session == nil {
		return &Snapshot{Segments: []SegmentView{}}, nil
	}

	segments, err := s.repo.GetSegmentsForSession(ctx, session.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to get segments")
	}
	return buildSnapshot(session, segments), nil
}

// CurrentWorkingSeconds sums the working-activity segment durations of the
// open session, counting an open working segment up to now. It is the
// single source of elapsed working time for both the API and the
// notification scheduler.
func (s *WorkdayService) CurrentWorkingSeconds(ctx context.Context) (int64, *apperrors.APIError) {
	open, err := s.repo.GetOpenSession(ctx)
	if err == repository.ErrOpenSessionConflict {
		s.logger.Error("store integrity violation", "error", err)
		return 0, apperrors.StoreIntegrity("more than one open session found")
	}
	if err != nil {
		return 0, apperrors.Internal("failed to get open session")
	}
	if open == nil {
		return 0, nil
	}

	segments, err := s.repo.GetSegmentsForSession(ctx, open.ID)
	if err != nil {
		return 0, apperrors.Internal("failed to get segments")
	}

	now := s.now()
	var total time.Duration
	for _, segment := range segments {
		if segment.Activity != model.ActivityWorking {
			continue
		}
		end := now
		if segment.End != nil {
			end = *segment.End
		}
		if end.After(segment.Start) {
			total += end.Sub(segment.Start)
		}
	}
	return int64(total.Seconds()), nil
}

// History returns sessions with their segments, newest first.
func (s *WorkdayService) History(ctx context.Context, limit, page int, from, to *time.Time) ([]Snapshot, *apperrors.APIError) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	sessions, err := s.repo.ListSessions(ctx, limit, offset, from, to)
	if err != nil {
		return nil, apperrors.Internal("failed to list sessions")
	}

	result := make([]Snapshot, 0, len(sessions))
	for i := range sessions {
		segments, segErr := s.repo.GetSegmentsForSession(ctx, sessions[i].ID)
		if segErr != nil {
			return nil, apperrors.Internal("failed to get segments")
		}
		result = append(result, *buildSnapshot(&sessions[i], segments))
	}
	return result, nil
}

func (s *WorkdayService) openWorkday(ctx context.Context, tx *sql.Tx, timestamp time.Time) (*Snapshot, *apperrors.APIError) {
	sessionID, err := s.repo.CreateSessionTx(ctx, tx, timestamp)
	if err != nil {
		return nil, apperrors.Internal("failed to create session")
	}
	if _, err := s.repo.CreateSegmentTx(ctx, tx, sessionID, timestamp, nil, model.ActivityWorking); err != nil {
		return nil, apperrors.Internal("failed to create segment")
	}
	return s.snapshotTx(ctx, tx, &model.Session{ID: sessionID, Start: timestamp})
}

func (s *WorkdayService) closeWorkday(ctx context.Context, tx *sql.Tx, open *model.Session, timestamp time.Time) (*Snapshot, *apperrors.APIError) {
	segment, err := s.repo.GetOpenSegmentTx(ctx, tx, open.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to get open segment")
	}
	if segment != nil {
		if err := s.repo.CloseSegmentTx(ctx, tx, segment.ID, timestamp); err != nil {
			return nil, apperrors.Internal("failed to close segment")
		}
	} else {
		s.logger.Error("open session had no open segment at close", "sessionId", open.ID)
	}
	if err := s.repo.CloseSessionTx(ctx, tx, open.ID, timestamp); err != nil {
		return nil, apperrors.Internal("failed to close session")
	}

	end := timestamp
	closed := *open
	closed.End = &end
	return s.snapshotTx(ctx, tx, &closed)
}

func (s *WorkdayService) openSession(ctx context.Context, tx *sql.Tx) (*model.Session, *apperrors.APIError) {
	open, err := s.repo.GetOpenSessionTx(ctx, tx)
	if err == repository.ErrOpenSessionConflict {
		s.logger.Error("store integrity violation", "error", err)
		return nil, apperrors.StoreIntegrity("more than one open session found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get open session")
	}
	return open, nil
}

func (s *WorkdayService) snapshotTx(ctx context.Context, tx *sql.Tx, session *model.Session) (*Snapshot, *apperrors.APIError) {
	segments, err := s.repo.GetSegmentsForSessionTx(ctx, tx, session.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to get segments")
	}
	return buildSnapshot(session, segments), nil
}

func buildSnapshot(session *model.Session, segments []model.Segment) *Snapshot {
	start := session.Start
	views := make([]SegmentView, 0, len(segments))
	for _, segment := range segments {
		views = append(views, SegmentView{
			StartTime: segment.Start,
			EndTime:   segment.End,
			Activity:  segment.Activity,
		})
	}
	return &Snapshot{
		StartTime: &start,
		EndTime:   session.End,
		Segments:  views,
	}
}
