package chat

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/waddasfs/openmedical/internal/domain/consultation"
	"github.com/waddasfs/openmedical/internal/platform/auth"
	"github.com/waddasfs/openmedical/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("patient", "doctor"))
	g.POST("/consultations/:id/messages", h.SendMessage)
	g.GET("/consultations/:id/messages", h.ListMessages)
	g.GET("/consultations/:id/messages/latest", h.LatestMessage)
}

func (h *Handler) SendMessage(c echo.Context) error {
	consultationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actorID, err := actorUUID(c)
	if err != nil {
		return err
	}
	var body struct {
		MessageType string   `json:"message_type"`
		Content     string   `json:"content"`
		Attachments []string `json:"attachments"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	m, err := h.svc.Send(c.Request().Context(), actorID, auth.ActorRoleFromContext(c.Request().Context()), consultationID, body.MessageType, body.Content, body.Attachments)
	if err != nil {
		switch {
		case errors.Is(err, consultation.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
		case errors.Is(err, ErrNotAuthorized):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMessages(c echo.Context) error {
	consultationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actorID, err := actorUUID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	messages, total, err := h.svc.History(c.Request().Context(), actorID, auth.ActorRoleFromContext(c.Request().Context()), consultationID, pg.Limit, pg.Offset)
	if err != nil {
		switch {
		case errors.Is(err, consultation.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
		case errors.Is(err, ErrNotAuthorized):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(messages, total, pg.Limit, pg.Offset))
}

func (h *Handler) LatestMessage(c echo.Context) error {
	consultationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actorID, err := actorUUID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.Latest(c.Request().Context(), actorID, auth.ActorRoleFromContext(c.Request().Context()), consultationID)
	if err != nil {
		switch {
		case errors.Is(err, consultation.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "no messages yet")
		case errors.Is(err, ErrNotAuthorized):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func actorUUID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.ActorIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid actor id")
	}
	return id, nil
}
