package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/greenledger"
	"github.com/totegamma/greenledger/internal/domain"
	"github.com/totegamma/greenledger/internal/present/rest/middleware"
	"github.com/totegamma/greenledger/internal/present/rest/presenter"
	"github.com/totegamma/greenledger/internal/service"
	"github.com/totegamma/greenledger/internal/usecase"
	"github.com/totegamma/greenledger/internal/utils"
)

// resolver looks up a record of any registry for /resource.
type resolver interface {
	Name() string
	resolve(ctx context.Context, id uint64) (any, bool, error)
}

type Handler struct {
	config       domain.Config
	certificates *registryHandler[domain.TreeCertificate]
	artpieces    *registryHandler[domain.ArtPiece]
	resolvers    map[string]resolver
	signal       *service.SignalService
}

type Options struct {
	// RequireOwnerAddress rejects owners that are not con1... addresses.
	RequireOwnerAddress bool
}

func NewHandler(
	config domain.Config,
	certificates *usecase.RegistryUsecase[domain.TreeCertificate],
	artpieces *usecase.RegistryUsecase[domain.ArtPiece],
	access *service.AccessService,
	signal *service.SignalService,
	opts Options,
) *Handler {
	h := &Handler{
		config: config,
		certificates: &registryHandler[domain.TreeCertificate]{
			uc:     certificates,
			access: access,
			opts:   opts,
			bind:   bindCertificate,
		},
		artpieces: &registryHandler[domain.ArtPiece]{
			uc:     artpieces,
			access: access,
			opts:   opts,
			bind:   bindArtPiece,
		},
		signal: signal,
	}
	h.resolvers = map[string]resolver{
		certificates.Name(): h.certificates,
		artpieces.Name():    h.artpieces,
	}
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/greenledger", h.handleWellKnown)
	e.GET("/resource/:uri", h.handleResource)
	e.GET("/realtime", h.handleRealtime)

	h.certificates.register(e.Group("/" + h.certificates.uc.Name()))
	h.artpieces.register(e.Group("/" + h.artpieces.uc.Name()))
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	endpoints := utils.OrderedKVMap[greenledger.Endpoint]{}
	endpoints.Append("greenledger.resource", greenledger.Endpoint{
		Template: "/resource/{uri}",
		Method:   http.MethodGet,
	})
	for _, name := range []string{h.certificates.uc.Name(), h.artpieces.uc.Name()} {
		endpoints.Append("greenledger."+name+".create", greenledger.Endpoint{
			Template: "/" + name,
			Method:   http.MethodPost,
		})
		endpoints.Append("greenledger."+name+".get", greenledger.Endpoint{
			Template: "/" + name + "/{id}",
			Method:   http.MethodGet,
			Query:    &[]string{"sentinel"},
		})
		endpoints.Append("greenledger."+name+".verify", greenledger.Endpoint{
			Template: "/" + name + "/{id}/verify",
			Method:   http.MethodPost,
		})
		endpoints.Append("greenledger."+name+".stats", greenledger.Endpoint{
			Template: "/" + name + "/stats",
			Method:   http.MethodGet,
		})
		endpoints.Append("greenledger."+name+".restore", greenledger.Endpoint{
			Template: "/" + name + "/restore",
			Method:   http.MethodPost,
		})
	}
	endpoints.Append("greenledger.realtime", greenledger.Endpoint{
		Template: "/realtime",
		Method:   http.MethodGet,
	})

	wellknown := greenledger.WellKnown{
		Version:    "1.0",
		Domain:     h.config.FQDN,
		CSID:       h.config.CSID,
		Registries: []string{h.certificates.uc.Name(), h.artpieces.uc.Name()},
		Endpoints:  endpoints,
	}
	return presenter.OK(c, wellknown)
}

func (h *Handler) handleResource(c echo.Context) error {
	ctx := c.Request().Context()

	registry, id, err := greenledger.ParseRecordURI(c.Param("uri"))
	if err != nil {
		return presenter.BadRequestMessage(c, err.Error())
	}

	r, ok := h.resolvers[registry]
	if !ok {
		return presenter.NotFound(c, "registry not found")
	}

	if id == 0 {
		return c.Redirect(http.StatusSeeOther, "/"+registry+"/stats")
	}

	value, found, err := r.resolve(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if !found {
		return presenter.NotFound(c, "resource not found")
	}
	return presenter.OK(c, value)
}

// respondError maps usecase errors onto status codes.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return presenter.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return presenter.Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrOverflow):
		return presenter.Conflict(c, err.Error())
	case errors.Is(err, domain.ErrArchived):
		return presenter.Gone(c, "registry archived, restore required")
	default:
		return presenter.InternalError(c, err)
	}
}

const (
	headerETag        = "ETag"
	headerIfNoneMatch = "If-None-Match"
)

// etag is a strong validator over the exact response body.
func etag(body []byte) string {
	return fmt.Sprintf("%q", strconv.FormatUint(xxh3.Hash(body), 16))
}

func jsonWithETag(c echo.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	tag := etag(body)
	c.Response().Header().Set(headerETag, tag)
	if c.Request().Header.Get(headerIfNoneMatch) == tag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSONBlob(http.StatusOK, body)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type       string   `json:"type"`
	Registries []string `json:"registries"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	if h.signal == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "realtime requires redis"})
	}

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
	output := make(chan greenledger.Event)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
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
				case input <- req.Registries:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Registries),
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

// registryHandler serves the routes of one registry.
type registryHandler[P domain.Payload[P]] struct {
	uc     *usecase.RegistryUsecase[P]
	access *service.AccessService
	opts   Options
	bind   func(c echo.Context) (string, P, error)
}

func (r *registryHandler[P]) Name() string {
	return r.uc.Name()
}

func (r *registryHandler[P]) register(g *echo.Group) {
	g.POST("", r.handleCreate)
	g.GET("/stats", r.handleStats)
	g.POST("/restore", r.handleRestore)
	g.GET("/:id", r.handleGet)
	g.POST("/:id/verify", r.handleVerify)
}

func (r *registryHandler[P]) resolve(ctx context.Context, id uint64) (any, bool, error) {
	return r.uc.Lookup(ctx, id)
}

func (r *registryHandler[P]) handleCreate(c echo.Context) error {
	ctx := c.Request().Context()

	owner, payload, err := r.bind(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	if owner == "" {
		return presenter.BadRequestMessage(c, "owner is required")
	}
	if r.opts.RequireOwnerAddress && !greenledger.IsAddress(owner, greenledger.AddressPrefix) {
		return presenter.BadRequestMessage(c, "owner must be a "+greenledger.AddressPrefix+" address")
	}

	id, err := r.uc.Create(ctx, owner, payload)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":  id,
		"uri": greenledger.ComposeRecordURI(r.uc.Name(), id),
	})
}

func (r *registryHandler[P]) handleVerify(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	ok, err := r.authorize(c, domain.ActionVerify, func(ctx context.Context) (any, error) {
		record, found, err := r.uc.Lookup(ctx, id)
		if err != nil || !found {
			return nil, err
		}
		return record, nil
	})
	if !ok {
		return err
	}

	err = r.uc.Verify(ctx, id)
	if err != nil {
		return respondError(c, err)
	}

	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (r *registryHandler[P]) handleGet(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	record, found, err := r.uc.Lookup(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if !found {
		if c.QueryParam("sentinel") != "true" {
			return presenter.NotFound(c, "record not found")
		}
		record = domain.NotFoundRecord[P]()
	}

	return jsonWithETag(c, record)
}

func (r *registryHandler[P]) handleStats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := r.uc.Stats(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return jsonWithETag(c, stats)
}

func (r *registryHandler[P]) handleRestore(c echo.Context) error {
	ctx := c.Request().Context()

	if ok, err := r.authorize(c, domain.ActionRestore, nil); !ok {
		return err
	}

	if err := r.uc.Restore(ctx); err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

// authorize writes the 401/403 response itself when the requester may not
// run action; callers return err as is when ok is false. target, when set,
// loads the record the policy sees and runs only for authenticated requests.
func (r *registryHandler[P]) authorize(c echo.Context, action string, target func(ctx context.Context) (any, error)) (ok bool, err error) {
	ctx := c.Request().Context()

	requester := middleware.Requester(ctx)
	if requester == "" {
		return false, presenter.Unauthorized(c, "authentication required")
	}

	var record any
	if target != nil {
		record, err = target(ctx)
		if err != nil {
			return false, respondError(c, err)
		}
	}

	if err := r.access.Check(ctx, requester, r.uc.Name(), action, record); err != nil {
		return false, respondError(c, err)
	}
	return true, nil
}
