package handlers

import (
	"errors"
	"net/http"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/dkolesni/billing-sync/internal/service"
	"github.com/dkolesni/billing-sync/pkg/logger"
	"github.com/dkolesni/billing-sync/pkg/req"
	"github.com/dkolesni/billing-sync/pkg/res"
	"github.com/google/uuid"

	"github.com/gin-gonic/gin"
)

// CheckoutRequestBody тело запроса на создание checkout-сессии.
type CheckoutRequestBody struct {
	AccountID  string `json:"account_id" validate:"required,uuid"`
	PlanID     string `json:"plan_id" validate:"required"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// CheckoutResponse ответ с redirect URL на страницу оплаты.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// CheckoutHandler обрабатывает запросы на создание checkout-сессий.
type CheckoutHandler struct {
	service *service.CheckoutService
	log     *logger.Logger
}

// NewCheckoutHandler создает новый экземпляр CheckoutHandler.
func NewCheckoutHandler(service *service.CheckoutService, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		log:     log,
	}
}

// CreateCheckoutSession - обработчик POST /api/v1/checkout.
func (h *CheckoutHandler) CreateCheckoutSession(c *gin.Context) {
	body, err := req.HandleBody[CheckoutRequestBody](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	accountID, err := uuid.Parse(body.AccountID)
	if err != nil {
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid account id"}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}

	url, err := h.service.CreateCheckoutSession(c.Request.Context(), service.CheckoutRequest{
		AccountID:  accountID,
		PlanID:     body.PlanID,
		SuccessURL: body.SuccessURL,
		CancelURL:  body.CancelURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Account not found"}, http.StatusNotFound)
		case errors.Is(err, domain.ErrUnknownPlan):
			res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Unknown plan"}, http.StatusUnprocessableEntity)
		default:
			h.log.Errorw("Failed to create checkout session", "error", err, "accountID", body.AccountID)
			res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Failed to create checkout session"}, http.StatusInternalServerError)
		}
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, CheckoutResponse{URL: url})
}
