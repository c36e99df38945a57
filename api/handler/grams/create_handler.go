package grams

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/anoixa/grammable/api/middleware"
	"github.com/gin-gonic/gin"
)

// Create 上传图片并创建 gram
// @Summary      Create gram
// @Tags         grams
// @Accept       multipart/form-data
// @Produce      json
// @Param        message  formData  string  true  "Message"
// @Param        image    formData  file    true  "Image (jpeg, png, gif, webp, bmp)"
// @Success      302  "Redirect to /"
// @Failure      422  {object}  common.Response
// @Security     BearerAuth
// @Router       /grams [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	// 缺少文件或请求不是 multipart 时交给服务层按校验失败处理
	var upload *multipart.FileHeader
	fh, err := c.FormFile("image")
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		upload = fh
	case errors.As(err, &tooLarge):
		respondServiceError(c, h.svc.TooLargeError())
		return
	}

	if _, err := h.svc.Create(c.Request.Context(), userID, c.PostForm("message"), upload); err != nil {
		respondServiceError(c, err)
		return
	}
	redirectHome(c)
}
