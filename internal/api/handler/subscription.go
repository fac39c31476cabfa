package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/subscription_server/internal/api/middleware"
	"github.com/qs3c/subscription_server/internal/model/dto"
	"github.com/qs3c/subscription_server/internal/pkg/response"
	"github.com/qs3c/subscription_server/internal/service"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// List 当前用户的订阅历史，最新的在前
// GET /api/v1/subscriptions?page=&page_size=
func (h *SubscriptionHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.ListSubscriptionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	items, total, err := h.subscriptionService.ListPage(userID, req.Page, req.PageSize)
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, req.Page, req.PageSize, items)
}

// Activate 订阅套餐
// POST /api/v1/subscriptions
func (h *SubscriptionHandler) Activate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.subscriptionService.Activate(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Created(c, item)
}

// Switch 切换到另一个套餐
// PUT /api/v1/subscriptions
func (h *SubscriptionHandler) Switch(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.subscriptionService.Switch(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, "套餐已切换", item)
}

// Deactivate 取消当前订阅
// POST /api/v1/subscriptions/deactivate
func (h *SubscriptionHandler) Deactivate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	if err := h.subscriptionService.Deactivate(c.Request.Context(), userID); err != nil {
		h.writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, "订阅已取消", nil)
}

func (h *SubscriptionHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoActiveSubscription),
		errors.Is(err, service.ErrPlanNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		// 令牌有效但账号已被删除
		response.AuthError(c, err.Error())
	default:
		_ = c.Error(err)
		response.ServerError(c, "")
	}
}
