package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"norelock.dev/fetchx/backend/internal/models"
	"norelock.dev/fetchx/backend/internal/services/feed"
	"norelock.dev/fetchx/backend/internal/utils"
	"norelock.dev/fetchx/backend/pkg/websocket"
)

// Related stream message types.
const (
	ActionRelated = "related"
	ActionCancel  = "cancel"

	MessageBatch = "batch"
	MessageDone  = "done"
	MessageError = "error"
)

// RelatedStreamer streams related media. *feed.Orchestrator implements it.
type RelatedStreamer interface {
	Related(ctx context.Context, req feed.RelatedRequest, emit func(feed.Batch) error) error
}

// WSMetrics records WebSocket activity. Nil disables recording.
type WSMetrics interface {
	IncWSConnectionsActive()
	DecWSConnectionsActive()
	ObserveWSMessage(direction, msgType string)
}

// RelatedMessage is a client request on the related stream.
type RelatedMessage struct {
	ID        string            `json:"id"`
	Action    string            `json:"action" validate:"required,oneof=related cancel"`
	Query     string            `json:"query" validate:"max=200"`
	MediaType string            `json:"mediaType" validate:"omitempty,media_type"`
	Seed      *models.MediaItem `json:"seed,omitempty"`
	PerPage   int               `json:"perPage" validate:"min=0,max=80"`
	MaxPages  int               `json:"maxPages" validate:"min=0"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// FeedHandler serves the related-media stream over WebSocket.
type FeedHandler struct {
	streamer RelatedStreamer
	upgrader *gorillaws.Upgrader
	pool     *websocket.Pool
	config   websocket.Config
	metrics  WSMetrics
	logger   *utils.Logger
}

// NewFeedHandler creates a new feed handler. checkOrigin may be nil to accept
// any origin.
func NewFeedHandler(
	streamer RelatedStreamer,
	pool *websocket.Pool,
	config websocket.Config,
	checkOrigin func(string) bool,
	metrics WSMetrics,
	logger *utils.Logger,
) *FeedHandler {
	return &FeedHandler{
		streamer: streamer,
		upgrader: websocket.NewUpgrader(checkOrigin),
		pool:     pool,
		config:   config,
		metrics:  metrics,
		logger:   logger.Named("feed_handler"),
	}
}

// relatedSession owns the single in-flight stream of one connection.
type relatedSession struct {
	handler *FeedHandler
	conn    *websocket.Connection
	ctx     context.Context

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Related upgrades the request and serves related-media requests until the
// client disconnects. A new request replaces the stream in flight.
func (h *FeedHandler) Related(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("WebSocket upgrade failed", "error", err.Error(), "ip", utils.GetRequestIP(r))
		return
	}

	conn := websocket.NewConnection(raw, h.config)
	connID := uuid.NewString()
	if err := h.pool.Add(connID, conn); err != nil {
		_ = conn.CloseWithMessage(gorillaws.CloseGoingAway, "server shutting down")
		return
	}
	defer h.pool.Remove(connID)

	if h.metrics != nil {
		h.metrics.IncWSConnectionsActive()
		defer h.metrics.DecWSConnectionsActive()
	}

	// The request context ends with the handler, not with the hijacked socket.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go func() {
		select {
		case <-conn.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	go conn.KeepAlive(ctx)

	logger := h.logger.With("connId", connID, "remoteAddr", conn.RemoteAddr())
	logger.Debug("Related stream connected")

	session := &relatedSession{handler: h, conn: conn, ctx: ctx}
	defer func() {
		session.stop()
		_ = conn.Close()
		logger.Debug("Related stream disconnected")
	}()

	for {
		var msg RelatedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if isMalformedMessage(err) {
				h.send(conn, websocket.NewEnvelope(MessageError, errorPayload{Message: "Invalid message"}))
				continue
			}
			if !errors.Is(err, websocket.ErrConnectionClosed) {
				logger.Debug("Related stream read failed", "error", err.Error())
			}
			return
		}
		h.observe("in", msg.Action)

		if err := utils.Validate(msg); err != nil {
			message := "Invalid message"
			for _, m := range utils.FormatValidationErrors(err) {
				message = m
				break
			}
			h.send(conn, websocket.NewEnvelope(MessageError, errorPayload{Message: message}).WithID(msg.ID))
			continue
		}

		switch msg.Action {
		case ActionCancel:
			session.stop()
		case ActionRelated:
			session.start(msg)
		}
	}
}

// start cancels the running stream, waits for it to finish and launches a
// new one for msg.
func (s *relatedSession) start(msg RelatedMessage) {
	s.stop()

	// An empty media type lets the seed decide.
	var mediaType models.MediaType
	if msg.MediaType != "" {
		mediaType, _ = models.ParseMediaType(msg.MediaType)
	}
	req := feed.RelatedRequest{
		Query:     strings.TrimSpace(msg.Query),
		MediaType: mediaType,
		PerPage:   msg.PerPage,
		MaxPages:  msg.MaxPages,
	}
	if msg.Seed != nil {
		req.Seed = *msg.Seed
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(ctx, msg.ID, req)
	}()
}

func (s *relatedSession) run(ctx context.Context, id string, req feed.RelatedRequest) {
	h := s.handler
	err := h.streamer.Related(ctx, req, func(b feed.Batch) error {
		messageType := MessageBatch
		if b.Done {
			messageType = MessageDone
		}
		h.observe("out", messageType)
		return websocket.NewEnvelope(messageType, b).WithID(id).Send(s.conn)
	})
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, websocket.ErrConnectionClosed) {
		return
	}

	if utils.StatusCode(err) >= http.StatusInternalServerError {
		h.logger.Error("Related stream failed", err, "requestId", id)
	}
	h.send(s.conn, websocket.NewEnvelope(MessageError, errorPayload{
		Message: utils.PublicMessage(err, "Failed to load related media"),
	}).WithID(id))
}

// stop cancels the running stream, if any, and waits for it to exit.
func (s *relatedSession) stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (h *FeedHandler) send(conn *websocket.Connection, env *websocket.Envelope) {
	h.observe("out", env.Type)
	if err := env.Send(conn); err != nil && !errors.Is(err, websocket.ErrConnectionClosed) {
		h.logger.Debug("Failed to send WebSocket message", "type", env.Type, "error", err.Error())
	}
}

func (h *FeedHandler) observe(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.ObserveWSMessage(direction, msgType)
	}
}

func isMalformedMessage(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
