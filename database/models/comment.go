package models

import "gorm.io/gorm"

// Comment gram 下的评论，仅作为关联存在
type Comment struct {
	gorm.Model
	GramID  uint   `gorm:"not null;index" json:"gram_id"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	User    User   `gorm:"foreignKey:UserID" json:"user"`
	Message string `gorm:"type:text;not null" json:"message"`
}
