package grams

import (
	"github.com/anoixa/grammable/api/middleware"
	"github.com/gin-gonic/gin"
)

// Destroy 删除 gram，仅作者可操作
// @Summary      Destroy gram
// @Tags         grams
// @Produce      json
// @Param        id   path  int  true  "Gram ID"
// @Success      302  "Redirect to /"
// @Failure      401  {object}  common.Response
// @Failure      404  {object}  common.Response
// @Security     BearerAuth
// @Router       /grams/{id} [delete]
func (h *Handler) Destroy(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	if _, err := h.svc.Destroy(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	redirectHome(c)
}
