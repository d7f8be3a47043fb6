package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"flashsale/internal/repository"
	"flashsale/internal/service/order"
	"flashsale/pkg/log"
	"flashsale/pkg/utils"
)

// OrderHandler exposes order lookups over HTTP
type OrderHandler struct {
	service *order.Service
}

// NewOrderHandler creates an order handler
func NewOrderHandler(service *order.Service) *OrderHandler {
	return &OrderHandler{service: service}
}

// GetOrder handles GET /api/v1/order/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.FailResponse(c, utils.CodeInvalidParam, "invalid order id")
		return
	}

	result, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			utils.FailResponse(c, utils.CodeOrderNotFound, "order not found")
			return
		}
		log.WithError(err).Error("get order failed")
		utils.FailResponse(c, utils.CodeInternalError, "internal server error")
		return
	}

	utils.SuccessResponse(c, result)
}

// ListUserOrders handles GET /api/v1/order/user/:userId
func (h *OrderHandler) ListUserOrders(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		utils.FailResponse(c, utils.CodeInvalidParam, "invalid user id")
		return
	}

	orders, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		log.WithError(err).Error("list orders failed")
		utils.FailResponse(c, utils.CodeInternalError, "internal server error")
		return
	}

	utils.SuccessResponse(c, orders)
}
