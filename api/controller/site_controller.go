package controller

import (
	"errors"
	"net/http"

	domainErrors "codeinject-go-server/domain/errors"
	"codeinject-go-server/usecase"

	"github.com/gin-gonic/gin"
)

// SiteController 站点相关的编辑器接口
type SiteController struct {
	editor  *usecase.EditorUseCase
	sync    *usecase.SyncUseCase
	scripts *usecase.ScriptUseCase
}

func NewSiteController(editor *usecase.EditorUseCase, sync *usecase.SyncUseCase, scripts *usecase.ScriptUseCase) *SiteController {
	return &SiteController{editor: editor, sync: sync, scripts: scripts}
}

// ConnectSiteRequest 登记站点
type ConnectSiteRequest struct {
	SiteID string `json:"siteId" binding:"required"`
	Name   string `json:"name"`
}

// SyncErrorResponse 同步阶段失败时返回已完成的计数
type SyncErrorResponse struct {
	Error  string             `json:"error"`
	Phase  usecase.SyncPhase  `json:"phase"`
	Result usecase.SyncResult `json:"result"`
}

// ListSites GET /api/sites
func (sc *SiteController) ListSites(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sites, err := sc.editor.ListSites(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sites)
}

// ConnectSite POST /api/sites
func (sc *SiteController) ConnectSite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req ConnectSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "siteId is required"})
		return
	}
	site, err := sc.editor.ConnectSite(c.Request.Context(), userID, req.SiteID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, site)
}

// ListPages GET /api/sites/:siteId/pages
func (sc *SiteController) ListPages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pages, err := sc.editor.ListPages(c.Request.Context(), userID, c.Param("siteId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pages)
}

// SyncSite POST /api/sites/:siteId/sync
func (sc *SiteController) SyncSite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	siteID := c.Param("siteId")
	if _, err := sc.editor.AuthorizeSite(c.Request.Context(), userID, siteID); err != nil {
		respondError(c, err)
		return
	}

	result, err := sc.sync.SyncSite(c.Request.Context(), siteID)
	if err != nil {
		var phaseErr *usecase.SyncPhaseError
		if errors.As(err, &phaseErr) && !errors.Is(err, domainErrors.ErrSiteNotFound) {
			_ = c.Error(err)
			c.JSON(http.StatusBadGateway, SyncErrorResponse{Error: err.Error(), Phase: phaseErr.Phase, Result: result})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UpdateFiles PUT /api/sites/:siteId/files
func (sc *SiteController) UpdateFiles(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var lists usecase.FileLists
	if err := c.ShouldBindJSON(&lists); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file lists", Details: err.Error()})
		return
	}
	site, err := sc.editor.UpdateSiteFiles(c.Request.Context(), userID, c.Param("siteId"), lists)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

// RegisterScripts POST /api/sites/:siteId/scripts
func (sc *SiteController) RegisterScripts(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	siteID := c.Param("siteId")
	if _, err := sc.editor.AuthorizeSite(c.Request.Context(), userID, siteID); err != nil {
		respondError(c, err)
		return
	}
	report, err := sc.scripts.RegisterSite(c.Request.Context(), siteID)
	if err != nil {
		respondError(c, err)
		return
	}
	writeReport(c, report)
}

// ListFiles GET /api/sites/:siteId/files
func (sc *SiteController) ListFiles(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	files, err := sc.editor.ListFiles(c.Request.Context(), userID, c.Param("siteId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

// writeReport 两个位置都失败时返回 502，报告体照常返回
func writeReport(c *gin.Context, report *usecase.RegistrationReport) {
	status := http.StatusOK
	if !report.Head.Registered && !report.Body.Registered {
		status = http.StatusBadGateway
	}
	c.JSON(status, report)
}
