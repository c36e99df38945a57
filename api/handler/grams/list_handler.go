package grams

import (
	"net/http"
	"strconv"

	"github.com/anoixa/grammable/api/common"
	svcGrams "github.com/anoixa/grammable/internal/grams"
	"github.com/gin-gonic/gin"
)

// ListResponse 列表响应
type ListResponse struct {
	Grams []*GramDTO `json:"grams"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

// Index 列出所有 gram
// @Summary      List grams
// @Description  List every gram, newest first
// @Tags         grams
// @Produce      json
// @Param        page   query     int  false  "Page number"  default(1)
// @Param        limit  query     int  false  "Page size"    default(20)
// @Success      200    {object}  common.Response{data=ListResponse}
// @Router       /grams [get]
func (h *Handler) Index(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	page, limit = svcGrams.NormalizePage(page, limit)

	grams, total, err := h.svc.List(c.Request.Context(), page, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := ListResponse{
		Grams: make([]*GramDTO, 0, len(grams)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for _, gram := range grams {
		resp.Grams = append(resp.Grams, h.toDTO(gram))
	}

	c.Header("Cache-Control", "no-store")
	common.Respond(c, http.StatusOK, "success", "", resp)
}
