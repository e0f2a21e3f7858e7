package entity

import "time"

const (
	UserSearchFieldAll   = "all"
	UserSearchFieldEmail = "email"
	UserSearchFieldName  = "name"
)

// DbUser is an allow-listed visitor account.
type DbUser struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"column:password;type:varchar(255);not null" json:"-"`
}

// TableName overrides default pluralised name.
func (DbUser) TableName() string {
	return "users"
}

// UserSummary is a lightweight user description returned to clients.
type UserSummary struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserQuery supports listing users with search and pagination.
type UserQuery struct {
	BaseParams
	Search      string `json:"search" form:"search" query:"search"`
	SearchField string `json:"search_field" form:"search_field" query:"search_field"`
}

type UserCreateRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password,omitempty" form:"password"`
}

type UserUpdateRequest struct {
	Name     string  `json:"name" form:"name"`
	Email    string  `json:"email" form:"email"`
	Password *string `json:"password,omitempty" form:"password"`
}

type UserBulkDeleteRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// UserMutationResponse carries the generated plaintext password exactly once.
type UserMutationResponse struct {
	User              UserSummary `json:"user"`
	Message           string      `json:"message"`
	GeneratedPassword string      `json:"generated_password,omitempty"`
}

type UserListResponse struct {
	Users []UserSummary `json:"users"`
	Meta  *Meta         `json:"meta"`
}

type PasswordResetResponse struct {
	UserID      uint   `json:"user_id"`
	NewPassword string `json:"new_password"`
	Message     string `json:"message"`
}

// ImportRowError explains why one imported row was skipped.
type ImportRowError struct {
	Row     int    `json:"row"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ImportCredential is a password generated for an imported row without one.
type ImportCredential struct {
	Email             string `json:"email"`
	GeneratedPassword string `json:"generated_password"`
}

type ImportReport struct {
	Added       int                `json:"added"`
	Skipped     int                `json:"skipped"`
	Errors      []ImportRowError   `json:"errors,omitempty"`
	Credentials []ImportCredential `json:"credentials,omitempty"`
}

// ExportFile is a rendered user export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	ArchiveKey  string
}
