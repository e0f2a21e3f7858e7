package entity

import "time"

// DbSession stores one visitor session when the database backend is used.
type DbSession struct {
	ID        string    `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	Data      string    `gorm:"column:data;type:text;not null" json:"-"`
	ExpiresAt time.Time `gorm:"column:expires_at;index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides default pluralised name.
func (DbSession) TableName() string {
	return "sessions"
}

// AccessLoginRequest is the login form submitted from the gate page.
type AccessLoginRequest struct {
	Email       string `json:"email" form:"email"`
	Password    string `json:"password" form:"password"`
	Nonce       string `json:"nonce" form:"nonce"`
	RedirectURL string `json:"redirect_url" form:"redirect_url"`
	IsPreview   string `json:"is_preview" form:"is_preview"`
}

type AccessLogoutRequest struct {
	Nonce string `json:"nonce" form:"nonce"`
}

// AccessResponse mirrors the {success, data} envelope used by the login page script.
type AccessResponse struct {
	Success bool               `json:"success"`
	Data    AccessResponseData `json:"data"`
}

type AccessResponseData struct {
	Message     string `json:"message"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// VisitorIdentity describes who is browsing the front end.
type VisitorIdentity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Type        string `json:"type"`
	PreviewMode bool   `json:"preview_mode"`
	Greeting    string `json:"greeting"`
}
