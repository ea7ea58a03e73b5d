package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"workday/backend/internal/broadcast"
	apperrors "workday/backend/internal/errors"
	"workday/backend/internal/service"
	"workday/backend/internal/timeutil"
)

const (
	actionToggle = "toggle"
	actionPause  = "pause"

	watchWriteTimeout = 10 * time.Second
)

type WorkdayHandler struct {
	workdayService *service.WorkdayService
	hub            *broadcast.Hub
	logger         *slog.Logger
}

type workdayActionRequest struct {
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

func NewWorkdayHandler(workdayService *service.WorkdayService, hub *broadcast.Hub, logger *slog.Logger) *WorkdayHandler {
	return &WorkdayHandler{
		workdayService: workdayService,
		hub:            hub,
		logger:         logger,
	}
}

// Get returns the open session, or the last closed one, or null-filled
// fields when no session has ever existed.
func (h *WorkdayHandler) Get(c *gin.Context) {
	snapshot, apiErr := h.workdayService.CurrentSnapshot(c.Request.Context())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Post applies a toggle or pause action, optionally at a caller-supplied
// timestamp; the server clock is the default.
func (h *WorkdayHandler) Post(c *gin.Context) {
	var req workdayActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
		return
	}

	timestamp := time.Now().UTC()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(c, apperrors.BadRequest("invalid_timestamp", "timestamp must be an ISO-8601 string"))
			return
		}
		timestamp = parsed.UTC()
	}

	var snapshot *service.Snapshot
	var apiErr *apperrors.APIError
	switch req.Action {
	case actionToggle:
		snapshot, apiErr = h.workdayService.Toggle(c.Request.Context(), timestamp)
	case actionPause:
		snapshot, apiErr = h.workdayService.Pause(c.Request.Context(), timestamp)
	default:
		writeError(c, apperrors.BadRequest("invalid_action", "action must be toggle or pause"))
		return
	}
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Watch upgrades to a websocket and streams workdayUpdate events until the
// client disconnects. The current snapshot is sent immediately so a fresh
// viewer doesn't wait for the next action.
func (h *WorkdayHandler) Watch(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // cross-origin is handled by the CORS middleware
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "connection closed")

	events, cancel := h.hub.Subscribe()
	defer cancel()

	// CloseRead pumps the read side so the context ends when the peer
	// goes away.
	ctx := conn.CloseRead(c.Request.Context())

	if snapshot, apiErr := h.workdayService.CurrentSnapshot(ctx); apiErr == nil {
		if writeErr := h.writeEvent(ctx, conn, broadcast.EventWorkdayUpdate, snapshot); writeErr != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			writeCtx, cancelWrite := context.WithTimeout(ctx, watchWriteTimeout)
			writeErr := wsjson.Write(writeCtx, conn, event)
			cancelWrite()
			if writeErr != nil {
				return
			}
		}
	}
}

func (h *WorkdayHandler) writeEvent(ctx context.Context, conn *websocket.Conn, name string, payload interface{}) error {
	writeCtx, cancelWrite := context.WithTimeout(ctx, watchWriteTimeout)
	defer cancelWrite()
	return wsjson.Write(writeCtx, conn, gin.H{"event": name, "data": payload})
}

// History lists sessions with their segments, newest first. Optional
// from/to are YYYY-MM-DD dates in the viewer's timezone (tz_offset,
// minutes east of UTC).
func (h *WorkdayHandler) History(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	page := queryInt(c, "page", 1)
	offsetMinutes := queryInt(c, "tz_offset", 0)

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		parsed, err := timeutil.ParseLocalDate(raw, offsetMinutes)
		if err != nil {
			writeError(c, apperrors.BadRequest("invalid_from", "from must be a YYYY-MM-DD date"))
			return
		}
		from = &parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := timeutil.ParseLocalDate(raw, offsetMinutes)
		if err != nil {
			writeError(c, apperrors.BadRequest("invalid_to", "to must be a YYYY-MM-DD date"))
			return
		}
		end := timeutil.EndOfLocalDay(parsed)
		to = &end
	}

	sessions, apiErr := h.workdayService.History(c.Request.Context(), limit, page, from, to)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
