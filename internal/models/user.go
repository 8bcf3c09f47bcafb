package models

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

// ParseUserRole accepts any casing of a known role
func ParseUserRole(s string) (UserRole, bool) {
	switch UserRole(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

type User struct {
	ID           uint     `json:"id" gorm:"primaryKey"`
	Email        string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string   `json:"-" gorm:"not null;size:255"`
	FirstName    string   `json:"firstName" gorm:"not null;size:100"`
	LastName     string   `json:"lastName" gorm:"not null;size:100"`
	Role         UserRole `json:"role" gorm:"not null;size:16;default:USER;index"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
