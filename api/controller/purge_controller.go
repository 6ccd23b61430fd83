package controller

import (
	"net/http"

	"codeinject-go-server/usecase"

	"github.com/gin-gonic/gin"
)

// PurgeRequest POST /cache/purge 请求体
type PurgeRequest struct {
	TargetID flexibleID `json:"targetId"`
	Location string     `json:"location"`
	Type     string     `json:"type"`
}

// PurgeController Cache Invalidation Control，密钥校验由 PurgeAuth 中间件完成
type PurgeController struct {
	bundles *usecase.BundleUseCase
}

func NewPurgeController(bundles *usecase.BundleUseCase) *PurgeController {
	return &PurgeController{bundles: bundles}
}

// Purge POST /cache/purge
// 200 已删除；404 该键本来就不在缓存里
func (pc *PurgeController) Purge(c *gin.Context) {
	var req PurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MessageResponse{Message: "invalid request body"})
		return
	}

	target, err := parseTarget(string(req.TargetID), req.Location, req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, MessageResponse{Message: err.Error()})
		return
	}

	if !pc.bundles.Purge(c.Request.Context(), target) {
		c.JSON(http.StatusNotFound, MessageResponse{Message: "no cache entry for " + target.Key()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "purged " + target.Key()})
}
