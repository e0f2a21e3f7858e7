// Package emaildomain decides which email addresses belong to the site's
// allowed domain and validates the domain setting itself.
package emaildomain

import (
	"context"
	"errors"
	"fmt"
	"sitegate/internal/entity"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	minDomainLength = 4
	maxDomainLength = 253
)

// SettingStore is the persisted option storage the validator reads and writes.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Result is returned by format checks.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// UpdateResult is returned when an administrator changes the allowed domain.
type UpdateResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Domain  string `json:"domain,omitempty"`
}

var syntax = validator.New()

// Validator checks emails against the configured allowed domain.
type Validator struct {
	store SettingStore
}

// NewValidator creates a validator backed by store.
func NewValidator(store SettingStore) *Validator {
	return &Validator{store: store}
}

// AllowedDomain returns the configured domain without a leading "@", or "" when unset.
func (v *Validator) AllowedDomain(ctx context.Context) (string, error) {
	if v == nil || v.store == nil {
		return "", errors.New("setting store not available")
	}
	value, err := v.store.GetSetting(ctx, entity.SettingKeyAllowedDomain)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// IsConfigured reports whether a domain is set. Store failures count as unconfigured.
func (v *Validator) IsConfigured(ctx context.Context) bool {
	domain, err := v.AllowedDomain(ctx)
	if err != nil {
		logrus.WithError(err).Error("failed to read allowed domain")
		return false
	}
	return domain != ""
}

// IsValidEmail fails closed: without a configured domain no address is valid.
func (v *Validator) IsValidEmail(ctx context.Context, email string) bool {
	domain, err := v.AllowedDomain(ctx)
	if err != nil {
		logrus.WithError(err).Error("failed to read allowed domain")
		return false
	}
	return MatchesDomain(email, domain)
}

// MatchesDomain checks syntax and compares the part after the last "@" to domain,
// ignoring case. Subdomains do not match.
func MatchesDomain(email, domain string) bool {
	domain = strings.TrimPrefix(strings.TrimSpace(domain), "@")
	if domain == "" {
		return false
	}
	if !IsEmailSyntax(email) {
		return false
	}
	at := strings.LastIndex(email, "@")
	return strings.EqualFold(email[at+1:], domain)
}

// IsEmailSyntax performs the basic address syntax check.
func IsEmailSyntax(email string) bool {
	if email == "" || strings.TrimSpace(email) != email {
		return false
	}
	return syntax.Var(email, "required,email") == nil
}

// SetAllowedDomain normalises raw, validates it and persists it on success.
func (v *Validator) SetAllowedDomain(ctx context.Context, raw string) (UpdateResult, error) {
	domain := NormalizeDomain(raw)
	check := ValidateDomainFormat(domain)
	if !check.Valid {
		return UpdateResult{Status: StatusError, Message: check.Message}, nil
	}
	if v == nil || v.store == nil {
		return UpdateResult{}, errors.New("setting store not available")
	}
	if err := v.store.SetSetting(ctx, entity.SettingKeyAllowedDomain, domain); err != nil {
		return UpdateResult{Status: StatusError, Message: fmt.Sprintf("Failed to save domain: %v", err)}, err
	}
	return UpdateResult{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Allowed domain updated to @%s.", domain),
		Domain:  domain,
	}, nil
}

// ClearAllowedDomain removes the setting, which closes the gate for everyone but administrators.
func (v *Validator) ClearAllowedDomain(ctx context.Context) error {
	if v == nil || v.store == nil {
		return errors.New("setting store not available")
	}
	return v.store.DeleteSetting(ctx, entity.SettingKeyAllowedDomain)
}

// NormalizeDomain trims space, one leading "@" and case.
func NormalizeDomain(raw string) string {
	domain := strings.TrimSpace(raw)
	domain = strings.TrimPrefix(domain, "@")
	return strings.ToLower(domain)
}

// ValidateDomainFormat checks that candidate is a plausible bare domain name.
func ValidateDomainFormat(candidate string) Result {
	switch {
	case candidate == "":
		return Result{Message: "Domain cannot be empty."}
	case strings.Contains(candidate, "@"):
		return Result{Message: "Domain should not contain @ symbol."}
	case strings.IndexFunc(candidate, isSpace) >= 0:
		return Result{Message: "Domain cannot contain spaces."}
	case !strings.Contains(candidate, "."):
		return Result{Message: "Domain must contain at least one dot (e.g., company.com)."}
	case hasEdge(candidate, '.') || hasEdge(candidate, '-'):
		return Result{Message: "Domain cannot start or end with a dot or hyphen."}
	case strings.Contains(candidate, ".."):
		return Result{Message: "Domain cannot contain consecutive dots."}
	case strings.IndexFunc(candidate, isForbidden) >= 0:
		return Result{Message: "Domain can only contain letters, numbers, dots, and hyphens."}
	case len(candidate) < minDomainLength || len(candidate) > maxDomainLength:
		return Result{Message: fmt.Sprintf("Domain must be between %d and %d characters.", minDomainLength, maxDomainLength)}
	case !IsEmailSyntax("test@" + candidate):
		return Result{Message: "Invalid domain format."}
	}
	return Result{Valid: true, Message: "Domain format is valid."}
}

func hasEdge(s string, ch byte) bool {
	return s[0] == ch || s[len(s)-1] == ch
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isForbidden(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case r == '.', r == '-':
		return false
	}
	return true
}
