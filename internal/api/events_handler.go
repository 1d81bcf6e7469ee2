package api

import (
	"io"
	"net/http"
	"time"

	"alcyxob/coach-sessions/internal/realtime"
	"alcyxob/coach-sessions/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	eventBufferSize   = 16
	defaultKeepAlive  = 25 * time.Second
	keepAliveSSEEvent = "ping"
)

// EventsHandler streams a session's notification channel as Server-Sent Events.
type EventsHandler struct {
	sessionService service.SessionService
	subscriber     realtime.Subscriber
	keepAlive      time.Duration
}

func NewEventsHandler(sessionService service.SessionService, subscriber realtime.Subscriber) *EventsHandler {
	return &EventsHandler{
		sessionService: sessionService,
		subscriber:     subscriber,
		keepAlive:      defaultKeepAlive,
	}
}

// StreamSessionEvents godoc
// @Summary Subscribe to a session's events
// @Description Each SSE message is named after the event type and carries the event as JSON.
// @Description The stream carries identifiers only; clients re-fetch the session on every event.
// @Tags Sessions
// @Produce text/event-stream
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param access_token query string false "JWT, for clients that cannot set headers"
// @Success 200 {object} realtime.Event
// @Failure 404 {object} gin.H "Session not found"
// @Router /sessions/{sessionId}/events [get]
func (h *EventsHandler) StreamSessionEvents(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "sessionId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.sessionService.AuthorizeSubscription(ctx, callerFromContext(c), sessionID); err != nil {
		respondError(c, err)
		return
	}

	// Publishers call the handler inline, so a slow client drops events instead of blocking them.
	events := make(chan realtime.Event, eventBufferSize)
	unsubscribe, err := h.subscriber.Subscribe(ctx, realtime.ChannelForSession(sessionID), func(ev realtime.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	defer unsubscribe()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-events:
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-ticker.C:
			c.SSEvent(keepAliveSSEEvent, gin.H{})
			return true
		}
	})
}
