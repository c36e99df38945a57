package grams

import (
	"errors"
	"log"
	"net/http"

	"github.com/anoixa/grammable/api/common"
	"github.com/anoixa/grammable/database/models"
	svcGrams "github.com/anoixa/grammable/internal/grams"
	"github.com/anoixa/grammable/utils"
	"github.com/gin-gonic/gin"
)

// Handler gram 请求处理器
type Handler struct {
	svc     *svcGrams.Service
	baseURL string
}

// NewHandler 创建新的 gram 处理器
func NewHandler(svc *svcGrams.Service, baseURL string) *Handler {
	return &Handler{
		svc:     svc,
		baseURL: baseURL,
	}
}

// AuthorDTO 作者信息
type AuthorDTO struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// CommentDTO 评论信息
type CommentDTO struct {
	ID        uint      `json:"id"`
	Message   string    `json:"message"`
	Author    AuthorDTO `json:"author"`
	CreatedAt int64     `json:"created_at"`
}

// GramDTO gram 信息
type GramDTO struct {
	ID        uint          `json:"id"`
	Message   string        `json:"message"`
	ImageURL  string        `json:"image_url"`
	MimeType  string        `json:"mime_type"`
	Size      int64         `json:"size"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Author    AuthorDTO     `json:"author"`
	Comments  []*CommentDTO `json:"comments,omitempty"`
	CreatedAt int64         `json:"created_at"`
	UpdatedAt int64         `json:"updated_at"`
}

func (h *Handler) toDTO(gram *models.Gram) *GramDTO {
	dto := &GramDTO{
		ID:        gram.ID,
		Message:   gram.Message,
		ImageURL:  utils.BuildGramImageURL(h.baseURL, gram.ID),
		MimeType:  gram.ImageMimeType,
		Size:      gram.ImageSize,
		Width:     gram.ImageWidth,
		Height:    gram.ImageHeight,
		Author:    AuthorDTO{ID: gram.UserID, Username: gram.User.Username},
		CreatedAt: gram.CreatedAt.Unix(),
		UpdatedAt: gram.UpdatedAt.Unix(),
	}
	for _, comment := range gram.Comments {
		dto.Comments = append(dto.Comments, &CommentDTO{
			ID:        comment.ID,
			Message:   comment.Message,
			Author:    AuthorDTO{ID: comment.UserID, Username: comment.User.Username},
			CreatedAt: comment.CreatedAt.Unix(),
		})
	}
	return dto
}

// respondServiceError 将服务层错误映射为 HTTP 响应
func respondServiceError(c *gin.Context, err error) {
	ve, invalid := svcGrams.AsValidationError(err)
	switch {
	case errors.Is(err, svcGrams.ErrNotFound):
		common.RespondError(c, http.StatusNotFound, "Gram not found")
	case errors.Is(err, svcGrams.ErrUnauthorized):
		common.RespondError(c, http.StatusUnauthorized, "You can only change your own grams")
	case invalid:
		common.RespondErrorData(c, http.StatusUnprocessableEntity, ve.Error(), gin.H{"errors": ve.Errors})
	case utils.IsClientDisconnect(err):
		// 客户端已断开，无需响应
		c.Abort()
	default:
		log.Printf("[Grams] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// redirectHome 修改类操作成功后回到首页
func redirectHome(c *gin.Context) {
	c.Redirect(http.StatusFound, "/")
}
