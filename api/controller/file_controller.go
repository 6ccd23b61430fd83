package controller

import (
	"net/http"

	"codeinject-go-server/domain/entity"
	"codeinject-go-server/usecase"

	"github.com/gin-gonic/gin"
)

// FileController 代码片段 CRUD
type FileController struct {
	editor *usecase.EditorUseCase
}

func NewFileController(editor *usecase.EditorUseCase) *FileController {
	return &FileController{editor: editor}
}

// FileRequest 创建/更新请求；更新时 siteId 被忽略
type FileRequest struct {
	SiteID   string `json:"siteId"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

func (r FileRequest) toEntity() *entity.File {
	return &entity.File{
		SiteID:   r.SiteID,
		Name:     r.Name,
		Language: entity.Language(r.Language),
		Code:     r.Code,
	}
}

// CreateFile POST /api/files
func (fc *FileController) CreateFile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req FileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SiteID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "siteId, name and language are required"})
		return
	}
	file, err := fc.editor.CreateFile(c.Request.Context(), userID, req.toEntity())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, file)
}

// UpdateFile PUT /api/files/:fileId
func (fc *FileController) UpdateFile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(c)
	if !ok {
		return
	}
	var req FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	file := req.toEntity()
	file.ID = fileID
	updated, err := fc.editor.UpdateFile(c.Request.Context(), userID, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteFile DELETE /api/files/:fileId
func (fc *FileController) DeleteFile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(c)
	if !ok {
		return
	}
	if err := fc.editor.DeleteFile(c.Request.Context(), userID, fileID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "file deleted"})
}
