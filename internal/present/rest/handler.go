package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/concrnt-community"
	"github.com/totegamma/concrnt-community/internal/domain"
	"github.com/totegamma/concrnt-community/internal/present/rest/presenter"
	"github.com/totegamma/concrnt-community/internal/usecase"
)

// RealtimeSource streams events for the channels most recently requested.
type RealtimeSource interface {
	Realtime(ctx context.Context, request <-chan []string, response chan<- concrnt.Event)
}

type Handler struct {
	config    domain.Config
	community *usecase.CommunityUsecase
	signal    RealtimeSource
	metrics   http.Handler
}

// NewHandler builds the REST handler. signal and metrics may be nil, which
// leaves /realtime and /metrics unregistered.
func NewHandler(
	config domain.Config,
	community *usecase.CommunityUsecase,
	signal RealtimeSource,
	metrics http.Handler,
) *Handler {
	return &Handler{
		config:    config,
		community: community,
		signal:    signal,
		metrics:   metrics,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, mutation ...echo.MiddlewareFunc) {
	e.GET("/.well-known/concrnt", h.handleWellKnown)
	e.GET("/communities", h.handleList)
	e.GET("/communities/latest", h.handleLatest)
	e.GET("/communities/:id", h.handleGet)
	e.GET("/communities/:id/history", h.handleHistory)
	e.POST("/communities", h.handleCreate, mutation...)
	e.POST("/communities/:id/council", h.handleCreateCouncil, mutation...)
	if h.signal != nil {
		e.GET("/realtime", h.handleRealtime)
	}
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := concrnt.WellKnownConcrnt{
		Version: "2.0",
		Domain:  h.config.FQDN,
		CSID:    h.config.CSID,
		Layer:   h.config.Layer,
		Endpoints: map[string]concrnt.ConcrntEndpoint{
			"net.concrnt.community.create": {
				Template: "/communities",
				Method:   "POST",
			},
			"net.concrnt.community.list": {
				Template: "/communities",
				Method:   "GET",
			},
			"net.concrnt.community.get": {
				Template: "/communities/{id}",
				Method:   "GET",
			},
			"net.concrnt.community.latest": {
				Template: "/communities/latest",
				Method:   "GET",
			},
			"net.concrnt.community.history": {
				Template: "/communities/{id}/history",
				Method:   "GET",
			},
			"net.concrnt.community.council": {
				Template: "/communities/{id}/council",
				Method:   "POST",
			},
			"net.concrnt.realtime": {
				Template: "/realtime",
				Method:   "GET",
			},
		},
	}
	return presenter.OK(c, wellknown)
}

func (h *Handler) handleCreate(c echo.Context) error {
	ctx := c.Request().Context()

	var req concrnt.CreateCommunityRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid request body")
	}

	community, err := h.community.CreateCommunity(ctx, usecase.CreateCommunityInput{
		CommunityID: req.ID,
		Name:        req.Name,
		Address:     req.Address,
	})
	if err != nil {
		return renderError(c, err)
	}

	return presenter.OK(c, toCommunity(community))
}

func (h *Handler) handleCreateCouncil(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid community id")
	}

	var req concrnt.CreateCouncilRequest
	err = c.Bind(&req)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid request body")
	}

	members := make([]domain.Identity, len(req.Members))
	for i, member := range req.Members {
		members[i] = domain.Identity(member)
	}

	community, err := h.community.CreateCouncilForCommunity(ctx, id, members)
	if err != nil {
		return renderError(c, err)
	}

	return presenter.OK(c, toCommunity(community))
}

func (h *Handler) handleGet(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid community id")
	}

	community, err := h.community.GetCommunity(ctx, id)
	if err != nil {
		return renderError(c, err)
	}
	return presenter.OK(c, toCommunity(community))
}

func (h *Handler) handleList(c echo.Context) error {
	ctx := c.Request().Context()

	communities := h.community.ListCommunities(ctx)
	results := make([]concrnt.Community, len(communities))
	for i, community := range communities {
		results[i] = toCommunity(community)
	}
	return presenter.OK(c, results)
}

func (h *Handler) handleLatest(c echo.Context) error {
	ctx := c.Request().Context()
	return presenter.OK(c, concrnt.LatestCommunityID{ID: h.community.LatestCommunityID(ctx)})
}

func (h *Handler) handleHistory(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid community id")
	}

	events, err := h.community.History(ctx, id)
	if err != nil {
		return renderError(c, err)
	}
	return presenter.OK(c, events)
}

func parseID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

func renderError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCommunityID):
		return presenter.BadRequestMessage(c, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		return presenter.Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrNotExists):
		return presenter.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		return presenter.Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		return presenter.Conflict(c, err.Error())
	default:
		return presenter.InternalError(c, err)
	}
}

func toCommunity(c domain.Community) concrnt.Community {
	councils := make([]string, len(c.Councils))
	for i, member := range c.Councils {
		councils[i] = string(member)
	}
	return concrnt.Community{
		URI:      concrnt.CommunityURI(string(c.Owner), c.ID),
		ID:       c.ID,
		Name:     c.Name,
		Address:  c.Address,
		Owner:    string(c.Owner),
		Councils: councils,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan concrnt.Event)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				var wsErr *websocket.CloseError
				if errors.As(err, &wsErr) {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Channels:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Channels),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
