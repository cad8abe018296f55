package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/slicewise/slicewise/planner"
)

// StreamHandler serves GET /api/v1/plan/stream: the client opens a
// WebSocket, sends one JSON plan request, and receives pipeline progress
// events followed by the finished plan.
type StreamHandler struct {
	planner *planner.Planner
	timeout time.Duration
	logger  *zap.Logger
}

func NewStreamHandler(p *planner.Planner, timeout time.Duration, logger *zap.Logger) *StreamHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		planner: p,
		timeout: timeout,
		logger:  logger.With(zap.String("handler", "plan_stream")),
	}
}

// streamEvent is the wire form of a pipeline event.
type streamEvent struct {
	Type  planner.EventType `json:"type"`
	Step  string            `json:"step,omitempty"`
	Data  any               `json:"data,omitempty"`
	Error string            `json:"error,omitempty"`
}

// streamConn serializes writes; WebSocket connections do not support
// concurrent writers.
type streamConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *streamConn) write(ctx context.Context, ev streamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		h.logger.Debug("websocket read failed", zap.Error(err))
		return
	}

	var body planRequestBody
	if err := json.Unmarshal(data, &body); err != nil {
		conn.Close(websocket.StatusUnsupportedData, "request must be a JSON plan request")
		return
	}

	sc := &streamConn{conn: conn}
	planCtx := planner.WithEmitter(ctx, func(e planner.Event) {
		ev := streamEvent{Type: e.Type, Step: e.Step, Data: e.Data}
		if e.Err != nil {
			ev.Error = e.Err.Error()
		}
		if err := sc.write(ctx, ev); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
		}
	})

	if _, err := h.planner.Plan(planCtx, planner.Request{
		Description: body.Description,
		HeightMM:    body.HeightMM,
		WidthMM:     body.WidthMM,
	}); err != nil {
		_ = sc.write(ctx, streamEvent{Type: planner.EventStepError, Error: err.Error()})
		conn.Close(websocket.StatusInternalError, "plan failed")
		return
	}

	conn.Close(websocket.StatusNormalClosure, "")
}
