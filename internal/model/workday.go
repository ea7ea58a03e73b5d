package model

import "time"

const (
	ActivityWorking = "working"
	ActivityOnBreak = "on break"
)

// Session is one continuous workday. A nil End means the session is open.
type Session struct {
	ID    int64      `json:"id"`
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

func (s *Session) Open() bool {
	return s.End == nil
}

// Segment is one contiguous span of a single activity within a session.
// A nil End means the segment is open; at most one segment per session
// may be open at a time.
type Segment struct {
	ID        int64      `json:"id"`
	SessionID int64      `json:"sessionId"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	Activity  string     `json:"activity"`
}

func (s *Segment) Open() bool {
	return s.End == nil
}
