package consultation

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	api.GET("/consultations/packages", h.ListPackages)

	patientGroup := api.Group("", auth.RequireRole("patient"))
	patientGroup.POST("/consultations", h.CreateConsultation)
	patientGroup.GET("/consultations", h.ListConsultations)
	patientGroup.POST("/consultations/:id/cancel", h.CancelConsultation)

	readGroup := api.Group("", auth.RequireRole("patient", "doctor"))
	readGroup.GET("/consultations/:id", h.GetConsultation)
}

func (h *Handler) ListPackages(c echo.Context) error {
	return c.JSON(http.StatusOK, Packages())
}

func (h *Handler) CreateConsultation(c echo.Context) error {
	patientID, err := actorUUID(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	consult, err := h.svc.Create(c.Request().Context(), patientID, req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, consult)
}

func (h *Handler) GetConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	consult, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !canView(c, consult) {
		return echo.NewHTTPError(http.StatusForbidden, "not your consultation")
	}
	return c.JSON(http.StatusOK, consult)
}

func (h *Handler) ListConsultations(c echo.Context) error {
	patientID, err := actorUUID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	consults, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(consults, total, pg.Limit, pg.Offset))
}

func (h *Handler) CancelConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	patientID, err := actorUUID(c)
	if err != nil {
		return err
	}
	consult, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if consult.PatientID != patientID && auth.ActorRoleFromContext(c.Request().Context()) != "admin" {
		return echo.NewHTTPError(http.StatusForbidden, "not your consultation")
	}
	consult, err = h.svc.Transition(c.Request().Context(), id, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, consult)
}

func actorUUID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.ActorIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid actor id")
	}
	return id, nil
}

func canView(c echo.Context, consult *Consultation) bool {
	actor := auth.ActorIDFromContext(c.Request().Context())
	switch auth.ActorRoleFromContext(c.Request().Context()) {
	case "admin":
		return true
	case "doctor":
		return consult.AssignedDoctorID != nil && consult.AssignedDoctorID.String() == actor
	default:
		return consult.PatientID.String() == actor
	}
}
