package controller

import (
	"io"
	"net/http"

	"codeinject-go-server/usecase"

	"github.com/gin-gonic/gin"
)

// PageController 页面文件列表与脚本注册
type PageController struct {
	editor  *usecase.EditorUseCase
	scripts *usecase.ScriptUseCase
}

func NewPageController(editor *usecase.EditorUseCase, scripts *usecase.ScriptUseCase) *PageController {
	return &PageController{editor: editor, scripts: scripts}
}

// GetPage GET /api/pages/:pageId
func (pc *PageController) GetPage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pageID, ok := pageIDParam(c)
	if !ok {
		return
	}
	page, err := pc.editor.GetPage(c.Request.Context(), userID, pageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// UpdateFiles PUT /api/pages/:pageId/files
// 请求体: {"headFiles": [1, 2], "bodyFiles": []}
func (pc *PageController) UpdateFiles(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pageID, ok := pageIDParam(c)
	if !ok {
		return
	}
	var lists usecase.FileLists
	if err := c.ShouldBindJSON(&lists); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file lists", Details: err.Error()})
		return
	}
	page, err := pc.editor.UpdatePageFiles(c.Request.Context(), userID, pageID, lists)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// PatchFiles PATCH /api/pages/:pageId/files
// 请求体是 RFC 6902 JSON Patch，例如 [{"op":"add","path":"/headFiles/-","value":3}]
func (pc *PageController) PatchFiles(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pageID, ok := pageIDParam(c)
	if !ok {
		return
	}
	patch, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot read request body"})
		return
	}
	page, err := pc.editor.PatchPageFiles(c.Request.Context(), userID, pageID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// RegisterScripts POST /api/pages/:pageId/scripts
func (pc *PageController) RegisterScripts(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pageID, ok := pageIDParam(c)
	if !ok {
		return
	}
	if _, err := pc.editor.GetPage(c.Request.Context(), userID, pageID); err != nil {
		respondError(c, err)
		return
	}
	report, err := pc.scripts.RegisterPage(c.Request.Context(), pageID)
	if err != nil {
		respondError(c, err)
		return
	}
	writeReport(c, report)
}
