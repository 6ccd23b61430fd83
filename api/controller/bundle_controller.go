package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"codeinject-go-server/domain/entity"
	domainErrors "codeinject-go-server/domain/errors"
	"codeinject-go-server/usecase"

	"github.com/gin-gonic/gin"
)

// BundleRequest POST /bundle 请求体，id 可以是字符串或数字
type BundleRequest struct {
	ID       flexibleID `json:"id"`
	Location string     `json:"location"`
	Type     string     `json:"type"`
}

// flexibleID 页面 ID 在旧 loader 里是数字
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("id must be a string or number")
	}
	*f = flexibleID(n.String())
	return nil
}

// BundleController Delivery Endpoint
type BundleController struct {
	bundles *usecase.BundleUseCase
	maxAge  int
}

func NewBundleController(bundles *usecase.BundleUseCase, ttl time.Duration) *BundleController {
	return &BundleController{bundles: bundles, maxAge: int(ttl.Seconds())}
}

// GetBundle GET /bundle?id=&location=&type=
func (bc *BundleController) GetBundle(c *gin.Context) {
	bc.serve(c, c.Query("id"), c.Query("location"), c.Query("type"))
}

// PostBundle POST /bundle {id, location, type}
// loader 脚本走这个入口
func (bc *BundleController) PostBundle(c *gin.Context) {
	var req BundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	bc.serve(c, string(req.ID), req.Location, req.Type)
}

func (bc *BundleController) serve(c *gin.Context, id, location, kind string) {
	target, err := parseTarget(id, location, kind)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := bc.bundles.GetBundle(c.Request.Context(), target)
	if err != nil {
		respondError(c, err)
		return
	}

	if res.CacheHit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Header("ETag", res.ETag)
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", bc.maxAge))

	if match := c.GetHeader("If-None-Match"); match != "" && match == res.ETag {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, res.Bundle)
}

// parseTarget 缺 id 或 location 非法 → 400
func parseTarget(id, location, kind string) (entity.Target, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return entity.Target{}, domainErrors.ErrMissingTargetID
	}
	loc, err := entity.ParseLocation(location)
	if err != nil {
		return entity.Target{}, err
	}
	k, err := entity.ParseTargetKind(kind)
	if err != nil {
		return entity.Target{}, err
	}
	return entity.Target{Kind: k, ID: id, Location: loc}, nil
}
