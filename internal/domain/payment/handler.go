package payment

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
	patientGroup := api.Group("", auth.RequireRole("patient"))
	patientGroup.POST("/payments", h.CreateOrder)
	patientGroup.GET("/payments", h.ListOrders)
	patientGroup.GET("/payments/:id", h.GetOrder)
	patientGroup.GET("/payments/:id/status", h.CheckStatus)
	patientGroup.POST("/payments/:id/confirm", h.ConfirmPayment)
	patientGroup.GET("/consultations/:id/payment", h.GetConsultationOrder)
}

// GetConsultationOrder looks the order up by consultation id, for clients
// that track the consultation rather than the order.
func (h *Handler) GetConsultationOrder(c echo.Context) error {
	consultationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actorID, err := actorUUID(c)
	if err != nil {
		return err
	}
	isAdmin := auth.ActorRoleFromContext(c.Request().Context()) == "admin"
	order, err := h.svc.GetByConsultation(c.Request().Context(), actorID, isAdmin, consultationID)
	if err != nil {
		switch {
		case errors.Is(err, consultation.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "no payment order for this consultation")
		case errors.Is(err, ErrNotAuthorized):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) CreateOrder(c echo.Context) error {
	patientID, err := actorUUID(c)
	if err != nil {
		return err
	}
	var body struct {
		ConsultationID string `json:"consultation_id"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	consultationID, err := uuid.Parse(body.ConsultationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid consultation_id")
	}

	order, err := h.svc.CreateOrder(c.Request().Context(), patientID, consultationID)
	if err != nil {
		switch {
		case errors.Is(err, consultation.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
		case errors.Is(err, ErrNotAuthorized):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrValidation):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *Handler) GetOrder(c echo.Context) error {
	order, err := h.ownedOrder(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) ListOrders(c echo.Context) error {
	patientID, err := actorUUID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	orders, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(orders, total, pg.Limit, pg.Offset))
}

func (h *Handler) CheckStatus(c echo.Context) error {
	order, err := h.ownedOrder(c)
	if err != nil {
		return err
	}
	status := h.svc.CheckStatus(c.Request().Context(), order.ID)
	return c.JSON(http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) ConfirmPayment(c echo.Context) error {
	order, err := h.ownedOrder(c)
	if err != nil {
		return err
	}
	var body struct {
		TxRef string `json:"tx_ref"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	status, err := h.svc.ConfirmPayment(c.Request().Context(), order.ID, body.TxRef)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": status})
}

// ownedOrder loads the :id order and verifies the caller owns it. Admins
// may read any order.
func (h *Handler) ownedOrder(c echo.Context) (*Order, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	order, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "payment order not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if auth.ActorRoleFromContext(c.Request().Context()) != "admin" && order.PatientID.String() != auth.ActorIDFromContext(c.Request().Context()) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "not your payment order")
	}
	return order, nil
}

func actorUUID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.ActorIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid actor id")
	}
	return id, nil
}
