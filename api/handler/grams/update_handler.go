package grams

import (
	"github.com/anoixa/grammable/api/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type updateRequest struct {
	Message string `json:"message" form:"message"`
}

// Update 修改 gram 消息，仅作者可操作
// @Summary      Update gram
// @Tags         grams
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        id       path      int            true  "Gram ID"
// @Param        request  body      updateRequest  true  "New message"
// @Success      302  "Redirect to /"
// @Failure      401  {object}  common.Response
// @Failure      404  {object}  common.Response
// @Failure      422  {object}  common.Response
// @Security     BearerAuth
// @Router       /grams/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	// 请求体无法解析时按空消息处理，由服务层按顺序给出 404/401/422
	var req updateRequest
	if c.ContentType() == binding.MIMEJSON {
		_ = c.ShouldBindJSON(&req)
	} else {
		req.Message = c.PostForm("message")
	}

	if _, err := h.svc.Update(c.Request.Context(), userID, c.Param("id"), req.Message); err != nil {
		respondServiceError(c, err)
		return
	}
	redirectHome(c)
}
