package entity

import "time"

const (
	SettingKeyAllowedDomain = "allowed_domain"
	SettingKeyLoginSettings = "login_settings"
)

// DbSetting is a single persisted key/value option.
type DbSetting struct {
	Key       string    `gorm:"column:option_name;type:varchar(191);primaryKey" json:"key"`
	Value     string    `gorm:"column:option_value;type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides default pluralised name.
func (DbSetting) TableName() string {
	return "settings"
}

// LoginSettings customises the rendered login page.
type LoginSettings struct {
	Title           string `json:"title"`
	Message         string `json:"message"`
	LogoURL         string `json:"logo_url"`
	LogoKey         string `json:"logo_key,omitempty"`
	BackgroundColor string `json:"background_color"`
	FormBackground  string `json:"form_background"`
	PrimaryColor    string `json:"primary_color"`
	TextColor       string `json:"text_color"`
}

// DefaultLoginSettings returns the settings used until an administrator saves their own.
func DefaultLoginSettings() LoginSettings {
	return LoginSettings{
		Title:           "Access Restricted",
		Message:         "Please login with your authorized email address to access this website.",
		BackgroundColor: "#f1f1f1",
		FormBackground:  "#ffffff",
		PrimaryColor:    "#0073aa",
		TextColor:       "#23282d",
	}
}

type DomainSettingRequest struct {
	Domain string `json:"domain" form:"domain"`
}

type DomainSettingResponse struct {
	Domain     string `json:"domain"`
	Configured bool   `json:"configured"`
	Message    string `json:"message,omitempty"`
}

type DomainValidationResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type LoginSettingsUpdateRequest struct {
	Title           *string `json:"title,omitempty"`
	Message         *string `json:"message,omitempty"`
	LogoURL         *string `json:"logo_url,omitempty"`
	BackgroundColor *string `json:"background_color,omitempty"`
	FormBackground  *string `json:"form_background,omitempty"`
	PrimaryColor    *string `json:"primary_color,omitempty"`
	TextColor       *string `json:"text_color,omitempty"`
}
