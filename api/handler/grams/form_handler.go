package grams

import (
	"fmt"
	"net/http"

	"github.com/anoixa/grammable/api/common"
	"github.com/gin-gonic/gin"
)

// New 新建表单，需要登录
// @Summary      New gram form
// @Tags         grams
// @Produce      json
// @Success      200  {object}  common.Response{data=common.Form}
// @Failure      302  "Redirect to sign in"
// @Router       /grams/new [get]
func (h *Handler) New(c *gin.Context) {
	common.RespondSuccess(c, common.Form{
		Action:  "/grams",
		Method:  http.MethodPost,
		Enctype: "multipart/form-data",
		Fields: []common.FormField{
			{Name: "message", Type: "textarea", Required: true},
			{Name: "image", Type: "file", Required: true},
		},
	})
}

// Edit 编辑表单，不检查登录和作者
// @Summary      Edit gram form
// @Tags         grams
// @Produce      json
// @Param        id   path      int  true  "Gram ID"
// @Success      200  {object}  common.Response{data=common.Form}
// @Failure      404  {object}  common.Response
// @Router       /grams/{id}/edit [get]
func (h *Handler) Edit(c *gin.Context) {
	gram, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	common.RespondSuccess(c, common.Form{
		Action: fmt.Sprintf("/grams/%d", gram.ID),
		Method: http.MethodPatch,
		Fields: []common.FormField{
			{Name: "message", Type: "textarea", Required: true, Value: gram.Message},
		},
	})
}
