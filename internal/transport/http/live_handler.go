package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gorilla/websocket"

	apierrors "pipelinereview/internal/errors"
	"pipelinereview/internal/infrastructure"
	"pipelinereview/internal/middleware"
	"pipelinereview/internal/services"
	ws "pipelinereview/internal/websocket"
)

// Inbound message types handled by the live view
const (
	MessageFilters = "filters"
	MessageReset   = "reset"
	MessageSelect  = "select"
	MessageRefresh = "refresh"
)

type selectMessage struct {
	Label string `json:"label"`
}

type viewMessage struct {
	Sort string `json:"sort"`
	Desc bool   `json:"desc"`
}

// LiveHandler upgrades /ws and re-evaluates the review for every filter
// message the browser sends. Each connection works on the session of its
// upgrade request.
type LiveHandler struct {
	service   ReviewServiceInterface
	hub       *ws.Hub
	sessions  *SessionMiddleware
	validator *middleware.Validator
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewLiveHandler creates the websocket handler. Origins are matched against
// allowedOrigins; an empty list only admits same-host requests.
func NewLiveHandler(service ReviewServiceInterface, hub *ws.Hub, sessions *SessionMiddleware, validator *middleware.Validator, allowedOrigins []string, logger *slog.Logger) *LiveHandler {
	h := &LiveHandler{
		service:   service,
		hub:       hub,
		sessions:  sessions,
		validator: validator,
		logger:    logger.With(slog.String("handler", "live")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return checkOrigin(r, allowedOrigins) },
	}
	return h
}

func checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// ServeHTTP handles GET /ws
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.sessions.Handler(http.HandlerFunc(h.upgrade)).ServeHTTP(w, r)
}

func (h *LiveHandler) upgrade(w http.ResponseWriter, r *http.Request) {
	// The request ID when RequestID ran first, a fresh UUID otherwise.
	ctx, traceID := infrastructure.EnsureTraceID(r.Context())
	r = r.WithContext(ctx)

	// The session cookie was set on w by the middleware and goes out with the
	// upgrade response.
	conn, err := h.upgrader.Upgrade(w, r, w.Header().Clone())
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", middleware.GetRealIP(r)))
		return
	}

	client := ws.NewClient(h.hub, conn, SessionID(r.Context()), traceID, h.handle, h.logger)
	ws.Serve(h.hub, client)
}

// handle runs on the client's read goroutine, so messages of one connection
// are processed in order.
func (h *LiveHandler) handle(ctx context.Context, c *ws.Client, msg ws.Inbound) {
	var err error
	switch msg.Type {
	case MessageFilters:
		err = h.applyFilters(ctx, c, msg.Data)
	case MessageReset:
		if _, err = h.service.ResetFilters(ctx, c.SessionID()); err == nil {
			err = h.sendView(ctx, c, services.ViewOptions{})
		}
	case MessageRefresh:
		var opts viewMessage
		if err = decodeData(msg.Data, &opts); err == nil {
			err = h.sendView(ctx, c, services.ViewOptions{Sort: opts.Sort, Desc: opts.Desc})
		}
	case MessageSelect:
		err = h.selectCompany(ctx, c, msg.Data)
	default:
		err = apierrors.ErrValidation("type", "unknown message type "+msg.Type)
	}

	if err != nil {
		h.sendError(ctx, c, msg.Type, err)
	}
}

func (h *LiveHandler) applyFilters(ctx context.Context, c *ws.Client, data json.RawMessage) error {
	var req FilterRequest
	if err := decodeData(data, &req); err != nil {
		return err
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return err
	}

	state, err := h.service.SetFilters(ctx, c.SessionID(), req.State())
	if err != nil {
		return err
	}
	if err := c.Send(ws.TypeFilters, state); err != nil {
		return err
	}
	return h.sendView(ctx, c, services.ViewOptions{})
}

func (h *LiveHandler) sendView(ctx context.Context, c *ws.Client, opts services.ViewOptions) error {
	state, err := h.service.Filters(ctx, c.SessionID())
	if err != nil {
		return err
	}
	view, err := h.service.View(ctx, state, opts)
	if err != nil {
		return err
	}
	return c.Send(ws.TypeView, view)
}

func (h *LiveHandler) selectCompany(ctx context.Context, c *ws.Client, data json.RawMessage) error {
	var sel selectMessage
	if err := decodeData(data, &sel); err != nil {
		return err
	}
	label := strings.TrimSpace(sel.Label)
	if label == "" {
		return apierrors.ErrValidation("label", "label is required")
	}

	trials, err := h.service.Selection(ctx, label)
	if err != nil {
		return err
	}
	return c.Send(ws.TypeTrials, trials)
}

func (h *LiveHandler) sendError(ctx context.Context, c *ws.Client, messageType string, err error) {
	code := apierrors.CodeInternal
	message := "Internal server error"
	var details interface{}

	var apiErr *apierrors.APIError
	if errors.As(toAPIError(err), &apiErr) {
		code = apiErr.ErrorCode
		message = apiErr.Message
		details = apiErr.Details
	}

	h.logger.WarnContext(ctx, "live message failed",
		slog.String("client_id", c.ID()),
		slog.String("message_type", messageType),
		slog.String("error", err.Error()))

	if sendErr := c.Send(ws.TypeError, map[string]interface{}{
		"code":    code,
		"message": message,
		"details": details,
		"request": messageType,
	}); sendErr != nil {
		h.logger.DebugContext(ctx, "error reply dropped", slog.String("error", sendErr.Error()))
	}
}

// decodeData unmarshals an optional message payload.
func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apierrors.InvalidRequestWithError(err)
	}
	return nil
}
