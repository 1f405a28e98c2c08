package doctor

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/waddasfs/openmedical/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.POST("/doctors", h.RegisterDoctor)

	api.GET("/doctors/available", h.ListAvailable, auth.RequireRole("patient", "doctor"))
	api.GET("/doctors/:id", h.GetDoctor, auth.RequireRole("patient", "doctor"))

	doctorGroup := api.Group("", auth.RequireRole("doctor"))
	doctorGroup.POST("/doctors/login", h.Login)
	doctorGroup.PATCH("/doctors/me/status", h.UpdateStatus)
	doctorGroup.GET("/doctors/me/earnings", h.GetEarnings)
}

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Register(c.Request().Context(), &d); err != nil {
		if errors.Is(err, ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListAvailable(c echo.Context) error {
	doctors, err := h.svc.ListAvailable(c.Request().Context(),
		c.QueryParam("specialty"), c.QueryParam("level"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, doctors)
}

func (h *Handler) Login(c echo.Context) error {
	doctorID, err := actorUUID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.RecordLogin(c.Request().Context(), doctorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	doctorID, err := actorUUID(c)
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetStatus(c.Request().Context(), doctorID, body.Status); err != nil {
		if errors.Is(err, ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": body.Status})
}

func (h *Handler) GetEarnings(c echo.Context) error {
	doctorID, err := actorUUID(c)
	if err != nil {
		return err
	}
	summary, err := h.svc.Earnings(c.Request().Context(), doctorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}

func actorUUID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.ActorIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid actor id")
	}
	return id, nil
}
