package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/subscription_server/internal/model/dto"
	"github.com/qs3c/subscription_server/internal/pkg/response"
	"github.com/qs3c/subscription_server/internal/service"
)

type CatalogHandler struct {
	catalogService *service.CatalogService
}

func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
	}
}

// ListFeatures 功能项列表
// GET /api/v1/features
func (h *CatalogHandler) ListFeatures(c *gin.Context) {
	items, err := h.catalogService.ListFeatures()
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.Success(c, items)
}

// CreateFeature 创建功能项（管理员）
// POST /api/v1/features
func (h *CatalogHandler) CreateFeature(c *gin.Context) {
	var req dto.CreateFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.catalogService.CreateFeature(&req)
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.Created(c, item)
}

// ListPlans 套餐列表
// GET /api/v1/plans
func (h *CatalogHandler) ListPlans(c *gin.Context) {
	items, err := h.catalogService.ListPlans()
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.Success(c, items)
}

// GetPlan 套餐详情
// GET /api/v1/plans/:id
func (h *CatalogHandler) GetPlan(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的套餐ID")
		return
	}

	item, err := h.catalogService.GetPlan(planID)
	if err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.Success(c, item)
}

// CreatePlan 创建套餐（管理员）
// POST /api/v1/plans
func (h *CatalogHandler) CreatePlan(c *gin.Context) {
	var req dto.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.catalogService.CreatePlan(&req)
	if err != nil {
		if errors.Is(err, service.ErrFeatureNotFound) {
			response.ParamError(c, err.Error())
			return
		}
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.Created(c, item)
}

// DeletePlan 删除套餐（管理员），引用它的订阅记录级联删除
// DELETE /api/v1/plans/:id
func (h *CatalogHandler) DeletePlan(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的套餐ID")
		return
	}

	if err := h.catalogService.DeletePlan(planID); err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}
