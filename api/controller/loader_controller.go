package controller

import (
	"net/http"
	"strconv"

	"codeinject-go-server/domain/entity"
	"codeinject-go-server/internal/loader"
	"codeinject-go-server/usecase"

	"github.com/gin-gonic/gin"
)

// LoaderController 预览将要注册到平台的 loader 源码
type LoaderController struct {
	editor       *usecase.EditorUseCase
	endpointBase string
}

func NewLoaderController(editor *usecase.EditorUseCase, endpointBase string) *LoaderController {
	return &LoaderController{editor: editor, endpointBase: endpointBase}
}

// Preview GET /api/loader?type=&id=&location=
func (lc *LoaderController) Preview(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	target, err := parseTarget(c.Query("id"), c.Query("location"), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	switch target.Kind {
	case entity.TargetSite:
		_, err = lc.editor.AuthorizeSite(ctx, userID, target.ID)
	default:
		id, perr := strconv.ParseUint(target.ID, 10, 64)
		if perr != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "page id must be a positive integer"})
			return
		}
		_, err = lc.editor.GetPage(ctx, userID, uint(id))
	}
	if err != nil {
		respondError(c, err)
		return
	}

	src, err := loader.Generate(loader.Params{
		TargetID:     target.ID,
		Kind:         target.Kind,
		Location:     target.Location,
		EndpointBase: lc.endpointBase,
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", []byte(src))
}
