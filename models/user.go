package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// UserRole represents the role of a user
type UserRole string

const (
	UserRoleAdmin UserRole = "ADMIN"
	UserRoleOwner UserRole = "OWNER"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	Email        string    `gorm:"column:email;unique;not null;size:100;index"`
	PasswordHash string    `gorm:"column:password_hash;not null;size:100"`
	Role         UserRole  `gorm:"column:role;type:varchar(20);not null;default:'OWNER'"`
	FullName     string    `gorm:"column:full_name;not null;size:100"`
	Phone        string    `gorm:"column:phone;size:30"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate hook validating the record before insert
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if len(u.FullName) < 2 || len(u.FullName) > 100 {
		return errors.New("full name must be between 2 and 100 characters")
	}
	if len(u.Email) < 3 || len(u.Email) > 100 {
		return errors.New("email must be between 3 and 100 characters")
	}
	if u.Role != UserRoleAdmin && u.Role != UserRoleOwner {
		return errors.New("role must be ADMIN or OWNER")
	}
	return nil
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
