package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"flashsale/internal/service/seckill"
	"flashsale/pkg/log"
	"flashsale/pkg/utils"
)

// SeckillHandler exposes the flash-sale gate over HTTP
type SeckillHandler struct {
	service *seckill.Service
}

// NewSeckillHandler creates a seckill handler
func NewSeckillHandler(service *seckill.Service) *SeckillHandler {
	return &SeckillHandler{service: service}
}

// Seckill handles POST /api/v1/voucher/:id/seckill
func (h *SeckillHandler) Seckill(c *gin.Context) {
	voucherID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.FailResponse(c, utils.CodeInvalidParam, "invalid voucher id")
		return
	}
	userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil {
		utils.FailResponse(c, utils.CodeInvalidParam, "invalid user id")
		return
	}

	orderID, err := h.service.Seckill(c.Request.Context(), userID, voucherID)
	if err != nil {
		if appErr, ok := utils.IsAppError(err); ok {
			utils.FailResponse(c, appErr.Code, appErr.Message)
			return
		}
		log.WithError(err).Error("seckill failed")
		utils.FailResponse(c, utils.CodeInternalError, "internal server error")
		return
	}

	utils.SuccessResponse(c, gin.H{"order_id": orderID})
}

// Prewarm handles POST /api/v1/voucher/:id/prewarm
func (h *SeckillHandler) Prewarm(c *gin.Context) {
	voucherID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.FailResponse(c, utils.CodeInvalidParam, "invalid voucher id")
		return
	}

	if err := h.service.Prewarm(c.Request.Context(), voucherID); err != nil {
		log.WithError(err).WithField("voucher_id", voucherID).Error("prewarm failed")
		utils.FailResponse(c, utils.CodeInternalError, "failed to warm campaign")
		return
	}

	utils.SuccessResponse(c, nil)
}
