package grams

import (
	"io"
	"net/http"
	"path"

	"github.com/anoixa/grammable/api/common"
	"github.com/gin-gonic/gin"
)

// Show 获取 gram 详情
// @Summary      Show gram
// @Tags         grams
// @Produce      json
// @Param        id   path      int  true  "Gram ID"
// @Success      200  {object}  common.Response{data=GramDTO}
// @Failure      404  {object}  common.Response
// @Router       /grams/{id} [get]
func (h *Handler) Show(c *gin.Context) {
	gram, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.RespondSuccess(c, h.toDTO(gram))
}

// Image 输出 gram 的图片
// @Summary      Gram image
// @Tags         grams
// @Produce      image/jpeg,image/png,image/gif,image/webp,image/bmp
// @Param        id   path  int  true  "Gram ID"
// @Success      200
// @Failure      404  {object}  common.Response
// @Router       /grams/{id}/image [get]
func (h *Handler) Image(c *gin.Context) {
	reader, gram, err := h.svc.OpenImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	if gram.ImageMimeType != "" {
		c.Header("Content-Type", gram.ImageMimeType)
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Header("X-Content-Type-Options", "nosniff")

	http.ServeContent(c.Writer, c.Request, path.Base(gram.Image), gram.UpdatedAt, reader)
}
