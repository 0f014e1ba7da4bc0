package model

import (
	"strings"
	"time"
)

type User struct {
	Base
	Email        string     `gorm:"size:254;not null;uniqueIndex:uk_users_email"`
	FirstName    string     `gorm:"column:first_name;size:150"`
	LastName     string     `gorm:"column:last_name;size:150"`
	PasswordHash string     `gorm:"column:password_hash;size:255;not null"`
	IsActive     bool       `gorm:"column:is_active;not null;default:false"`
	IsStaff      bool       `gorm:"column:is_staff;not null;default:false"`
	LastLogin    *time.Time `gorm:"column:last_login"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) ShortName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
