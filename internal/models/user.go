package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleMarketing    UserRole = "marketing"
	RoleSuperAdmin   UserRole = "super_admin"
	RoleCoSuperAdmin UserRole = "co_super_admin"
	RoleGlobal       UserRole = "global"
	RoleFloor        UserRole = "floor"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleMarketing, RoleSuperAdmin, RoleCoSuperAdmin, RoleGlobal, RoleFloor:
		return true
	}
	return false
}

// IsSuperAdmin is true for both super admin roles.
func (r UserRole) IsSuperAdmin() bool {
	return r == RoleSuperAdmin || r == RoleCoSuperAdmin
}

// IsMetered is true for self-serve users who pay for generation in gems.
func (r UserRole) IsMetered() bool {
	return r == RoleGlobal
}

type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Username  string         `json:"username" gorm:"size:150;uniqueIndex;not null"`
	Email     string         `json:"email" gorm:"size:254"`
	FullName  string         `json:"fullName" gorm:"size:255"`
	Role      UserRole       `json:"role" gorm:"size:32;not null;index"`
	IsActive  bool           `json:"isActive" gorm:"not null"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}
