package currency

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/zeref/currency-converter/pkg/common"
	"github.com/zeref/currency-converter/pkg/validation"
)

// Handler handles HTTP requests for exchange rates
type Handler struct {
	service *Service
}

// NewHandler creates a new exchange rate handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetRate returns the exchange rate for a pair on a date
func (h *Handler) GetRate(c *gin.Context) {
	var req RateRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		common.ErrorResponse(c, 400, "from and to query parameters are required")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		common.ErrorResponse(c, 400, err.Error())
		return
	}

	rate, err := h.service.GetRate(c.Request.Context(), req.From, req.To, req.Date)
	if err != nil {
		common.AppErrorResponse(c, toAppError(err))
		return
	}

	common.SuccessResponse(c, ToRateResponse(rate))
}

// Convert converts an amount between two currencies
func (h *Handler) Convert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, 400, err.Error())
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		common.ErrorResponse(c, 400, err.Error())
		return
	}

	result, err := h.service.Convert(c.Request.Context(), req.Amount, req.From, req.To, req.Date)
	if err != nil {
		common.AppErrorResponse(c, toAppError(err))
		return
	}

	common.SuccessResponse(c, result)
}

// toAppError maps engine failures onto HTTP status codes. Internal kinds
// never reach here; they are translated inside the service.
func toAppError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrInvalidCurrency), errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidAmount):
		return common.NewBadRequestError(err.Error())
	case errors.Is(err, ErrRateNotFound):
		return common.NewNotFoundError(err.Error())
	case errors.Is(err, ErrStaleData):
		return common.NewServiceUnavailableError(err.Error())
	case errors.Is(err, ErrUpstreamUnavailable):
		return common.NewBadGatewayError(err.Error())
	default:
		return common.NewInternalServerError("failed to resolve exchange rate", err)
	}
}

// RegisterRoutes registers exchange rate routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rates := rg.Group("/currency")
	{
		rates.GET("/rate", h.GetRate)
		rates.POST("/convert", h.Convert)
	}
}
