package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"flashsale/internal/model"
	"flashsale/internal/service/shop"
	"flashsale/pkg/log"
	"flashsale/pkg/utils"
)

// ShopHandler exposes shop reads and updates over HTTP
type ShopHandler struct {
	service *shop.Service
}

// NewShopHandler creates a shop handler
func NewShopHandler(service *shop.Service) *ShopHandler {
	return &ShopHandler{service: service}
}

// GetShop handles GET /api/v1/shop/:id
func (h *ShopHandler) GetShop(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.FailResponse(c, utils.CodeInvalidParam, "invalid shop id")
		return
	}

	result, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		if appErr, ok := utils.IsAppError(err); ok {
			utils.FailResponse(c, appErr.Code, appErr.Message)
			return
		}
		log.WithError(err).Error("get shop failed")
		utils.FailResponse(c, utils.CodeInternalError, "internal server error")
		return
	}

	utils.SuccessResponse(c, result)
}

// UpdateShop handles PUT /api/v1/shop
func (h *ShopHandler) UpdateShop(c *gin.Context) {
	var req model.Shop
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.FailResponse(c, utils.CodeInvalidParam, "invalid request body")
		return
	}

	if err := h.service.Update(c.Request.Context(), &req); err != nil {
		if appErr, ok := utils.IsAppError(err); ok {
			utils.FailResponse(c, appErr.Code, appErr.Message)
			return
		}
		log.WithError(err).Error("update shop failed")
		utils.FailResponse(c, utils.CodeInternalError, "internal server error")
		return
	}

	utils.SuccessResponse(c, nil)
}
