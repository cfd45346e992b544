// Package model contains the persisted entities.
package model

import "time"

const (
	MaxUserNameLen = 30
	MaxTitleLen    = 50
	MaxBodyLen     = 300
)

type User struct {
	Id       int    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserName string `json:"userName" gorm:"column:user_name;size:30;uniqueIndex;not null"`
	Password string `json:"-" gorm:"size:255;not null"` // password hash, never the raw password
}

// Post is shared by all users; it has no owner.
type Post struct {
	Id        int       `json:"id" form:"id" gorm:"primaryKey;autoIncrement"`
	Title     string    `json:"title" form:"title" gorm:"size:50;not null"`
	Body      string    `json:"body" form:"body" gorm:"size:300;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}
