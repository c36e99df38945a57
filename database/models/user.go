package models

import "gorm.io/gorm"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	gorm.Model
	Username string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`
	Role     string `gorm:"type:varchar(16);default:user;not null" json:"role"`

	Grams []Gram `gorm:"foreignKey:UserID" json:"-"`
}
