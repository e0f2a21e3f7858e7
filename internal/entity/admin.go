package entity

import "time"

const (
	AdminRoleSuperAdmin = "super_admin"
	AdminRoleAdmin      = "admin"
)

// DbAdmin represents a platform administrator account.
type DbAdmin struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Email        string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	DisplayName  string    `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	Role         string    `gorm:"column:role;type:varchar(50);index;not null" json:"role"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

// TableName overrides default pluralised name.
func (DbAdmin) TableName() string {
	return "admins"
}

// IsPrivileged reports whether the account may manage the site.
func (a *DbAdmin) IsPrivileged() bool {
	if a == nil || !a.IsActive {
		return false
	}
	switch a.Role {
	case AdminRoleAdmin, AdminRoleSuperAdmin:
		return true
	default:
		return false
	}
}

// AdminSummary is a lightweight administrator description returned to clients.
type AdminSummary struct {
	ID          uint      `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AuthStatusResponse indicates whether the system already has administrators.
type AuthStatusResponse struct {
	HasAdmin bool `json:"has_admin"`
}

type AuthLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthRegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
}

type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Admin     AdminSummary `json:"admin"`
}
