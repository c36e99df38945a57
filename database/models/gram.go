package models

import (
	"strings"

	"gorm.io/gorm"
)

// Gram 用户发布的图文
type Gram struct {
	gorm.Model
	Message string `gorm:"type:text;not null" json:"message"`

	// Image 为存储路径，如 original/2026/10/18/a1b2c3d4e5f6.png
	Image         string `gorm:"type:varchar(255);not null" json:"image"`
	ImageMimeType string `gorm:"type:varchar(64)" json:"image_mime_type"`
	ImageSize     int64  `json:"image_size"`
	ImageWidth    int    `json:"image_width"`
	ImageHeight   int    `json:"image_height"`

	UserID uint `gorm:"not null;index:idx_gram_user_created,priority:1" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"user"`

	Comments []Comment `gorm:"foreignKey:GramID" json:"comments,omitempty"`
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + " " + e.Message
}

const msgBlank = "can't be blank"

// Validate 保存前的字段校验，返回所有违规项
func (g *Gram) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(g.Message) == "" {
		errs = append(errs, FieldError{Field: "message", Message: msgBlank})
	}
	if strings.TrimSpace(g.Image) == "" {
		errs = append(errs, FieldError{Field: "image", Message: msgBlank})
	}
	return errs
}

// OwnedBy 判断 gram 是否属于指定用户
func (g *Gram) OwnedBy(userID uint) bool {
	return userID != 0 && g.UserID == userID
}
