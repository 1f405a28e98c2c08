package assignment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/waddasfs/openmedical/internal/domain/consultation"
	"github.com/waddasfs/openmedical/internal/domain/doctor"
	"github.com/waddasfs/openmedical/internal/platform/auth"
	"github.com/waddasfs/openmedical/pkg/pagination"
)

type Handler struct {
	engine  *Engine
	sweeper *Sweeper
}

func NewHandler(engine *Engine, sweeper *Sweeper) *Handler {
	return &Handler{engine: engine, sweeper: sweeper}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctorGroup := api.Group("", auth.RequireRole("doctor"))
	doctorGroup.POST("/consultations/:id/claim", h.ClaimConsultation)
	doctorGroup.POST("/consultations/:id/complete", h.CompleteConsultation)
	doctorGroup.GET("/doctors/me/consultations", h.ListMyAssignments)

	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.POST("/admin/sweep", h.TriggerSweep)
}

func (h *Handler) ClaimConsultation(c echo.Context) error {
	consultationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	doctorID, err := actorUUID(c)
	if err != nil {
		return err
	}

	won, err := h.engine.Claim(c.Request().Context(), doctorID, consultationID)
	if err != nil {
		switch {
		case errors.Is(err, consultation.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
		case errors.Is(err, doctor.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
		case errors.Is(err, consultation.ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !won {
		return echo.NewHTTPError(http.StatusConflict, "consultation already taken")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"consultation_id": consultationID.String(),
		"doctor_id":       doctorID.String(),
	})
}

func (h *Handler) CompleteConsultation(c echo.Context) error {
	consultationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	doctorID, err := actorUUID(c)
	if err != nil {
		return err
	}

	consult, err := h.engine.Complete(c.Request().Context(), doctorID, consultationID)
	if err != nil {
		switch {
		case errors.Is(err, consultation.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
		case errors.Is(err, ErrNotAssigned):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, consultation.ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, consult)
}

func (h *Handler) ListMyAssignments(c echo.Context) error {
	doctorID, err := actorUUID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	records, total, err := h.engine.DoctorHistory(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, pg.Limit, pg.Offset))
}

func (h *Handler) TriggerSweep(c echo.Context) error {
	assigned := h.sweeper.RunOnce(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]int{"assigned": assigned})
}

func actorUUID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.ActorIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid actor id")
	}
	return id, nil
}
