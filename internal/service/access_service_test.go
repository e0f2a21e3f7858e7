package service

import (
	"context"
	"errors"
	"sitegate/internal/auth"
	"sitegate/internal/entity"
	"sitegate/internal/session"
	"testing"
)

func newTestAccessService(t *testing.T) (*AccessService, *UserService, *fakeUserRepo) {
	t.Helper()
	users, repo := newTestUserService()
	if _, _, err := users.AddUser(context.Background(), entity.UserCreateRequest{Name: "Alice", Email: "alice@example.com", Password: "alice-pw"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return NewAccessService(users, staticDomain{domain: "example.com"}), users, repo
}

func newTestAdmin(t *testing.T, password string) *entity.DbAdmin {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &entity.DbAdmin{ID: 3, Email: "root@corp.test", DisplayName: "Root", PasswordHash: hash, Role: entity.AdminRoleSuperAdmin, IsActive: true}
}

func TestLoginOutcomes(t *testing.T) {
	svc, _, _ := newTestAccessService(t)

	tests := []struct {
		name    string
		in      LoginInput
		success bool
		message string
	}{
		{name: "success", in: LoginInput{Email: "alice@example.com", Password: "alice-pw"}, success: true, message: MsgLoginSuccess},
		{name: "email case ignored", in: LoginInput{Email: "Alice@Example.com", Password: "alice-pw"}, success: true, message: MsgLoginSuccess},
		{name: "wrong domain", in: LoginInput{Email: "alice@other.com", Password: "alice-pw"}, message: "Invalid email domain. Only @example.com emails are allowed."},
		{name: "unknown email", in: LoginInput{Email: "bob@example.com", Password: "x"}, message: MsgEmailNotAuthorized},
		{name: "wrong password", in: LoginInput{Email: "alice@example.com", Password: "nope"}, message: MsgInvalidPassword},
		{name: "empty email", in: LoginInput{Password: "alice-pw"}, message: "Invalid email domain. Only @example.com emails are allowed."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Login(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Success != tt.success || res.Message != tt.message {
				t.Fatalf("Login() = %+v, want success=%v message=%q", res, tt.success, tt.message)
			}
			if !tt.success && res.Session.Authenticated {
				t.Fatal("failed login must not carry session data")
			}
		})
	}
}

func TestLoginSessionAndRedirect(t *testing.T) {
	svc, _, _ := newTestAccessService(t)

	res, err := svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "alice-pw", RedirectURL: "https://elsewhere.test/x?y=1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.RedirectURL != "https://elsewhere.test/x?y=1" {
		t.Fatalf("redirect must be echoed verbatim, got %q", res.RedirectURL)
	}
	data := res.Session
	if !data.IsAuthenticated() || data.UserEmail != "alice@example.com" || data.UserName != "Alice" || data.UserID != "1" {
		t.Fatalf("unexpected session %+v", data)
	}
	if data.PreviewMode {
		t.Fatal("a non-preview login must not set preview mode")
	}

	res, _ = svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "alice-pw"})
	if res.RedirectURL != "/" {
		t.Fatalf("expected fallback redirect, got %q", res.RedirectURL)
	}
}

func TestPreviewLoginLeavesUserStoreUntouched(t *testing.T) {
	svc, _, repo := newTestAccessService(t)
	admin := newTestAdmin(t, "admin-pw")
	before := repo.writeCount()

	res, err := svc.Login(context.Background(), LoginInput{
		Email:    "ROOT@corp.test",
		Password: "admin-pw",
		Preview:  true,
		Admin:    admin,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.Success || res.Message != MsgPreviewLoginSuccess {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.Session.PreviewMode || res.Session.UserID != "admin_3" || res.Session.UserName != "Root" {
		t.Fatalf("unexpected session %+v", res.Session)
	}
	if repo.writeCount() != before {
		t.Fatal("preview login must not write to the user store")
	}
}

func TestPreviewLoginFallsThrough(t *testing.T) {
	svc, _, _ := newTestAccessService(t)
	admin := newTestAdmin(t, "admin-pw")

	tests := []struct {
		name    string
		in      LoginInput
		message string
	}{
		{
			name:    "wrong admin password",
			in:      LoginInput{Email: "root@corp.test", Password: "bad", Preview: true, Admin: admin},
			message: "Invalid email domain. Only @example.com emails are allowed.",
		},
		{
			name:    "not privileged",
			in:      LoginInput{Email: "root@corp.test", Password: "admin-pw", Preview: true, Admin: &entity.DbAdmin{Email: "root@corp.test", Role: entity.AdminRoleAdmin}},
			message: "Invalid email domain. Only @example.com emails are allowed.",
		},
		{
			name:    "preview flag without admin",
			in:      LoginInput{Email: "root@corp.test", Password: "admin-pw", Preview: true},
			message: "Invalid email domain. Only @example.com emails are allowed.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Login(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Success || res.Message != tt.message {
				t.Fatalf("Login() = %+v, want failure %q", res, tt.message)
			}
		})
	}

	// an allow-listed user may still log in with the preview flag
	res, _ := svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "alice-pw", Preview: true, Admin: admin})
	if !res.Success || res.Message != MsgLoginSuccess || !res.Session.PreviewMode {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLoginAfterPasswordReset(t *testing.T) {
	svc, users, _ := newTestAccessService(t)
	ctx := context.Background()

	alice, _ := users.FindByEmail(ctx, "alice@example.com")
	plain, err := users.ResetPassword(ctx, alice.ID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if res, _ := svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "alice-pw"}); res.Success {
		t.Fatal("old password must fail after reset")
	}
	if res, _ := svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: plain}); !res.Success {
		t.Fatalf("new password must succeed, got %+v", res)
	}
}

func TestLoginFailsClosedWithoutDomain(t *testing.T) {
	users, _ := newTestUserService()
	svc := NewAccessService(users, staticDomain{})
	res, err := svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success || res.Message != MsgLoginUnavailable {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLoginSurfacesStoreFailure(t *testing.T) {
	users, repo := newTestUserService()
	repo.err = errors.New("connection refused")
	svc := NewAccessService(users, staticDomain{domain: "example.com"})
	if _, err := svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "x"}); err == nil {
		t.Fatal("expected store failure to be returned")
	}

	svc = NewAccessService(users, staticDomain{err: errors.New("db down")})
	if _, err := svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "x"}); err == nil {
		t.Fatal("expected domain read failure to be returned")
	}
}

func TestIdentity(t *testing.T) {
	svc, _, _ := newTestAccessService(t)
	admin := newTestAdmin(t, "pw")

	if got := svc.Identity(sessionData(false, "", false), nil); got != nil {
		t.Fatalf("expected nil identity, got %+v", got)
	}
	if got := svc.Identity(sessionData(true, "a@example.com", false), nil); got == nil || got.Type != VisitorTypeRestricted || got.Greeting != "Welcome, A" {
		t.Fatalf("unexpected identity %+v", got)
	}
	if got := svc.Identity(sessionData(true, "a@example.com", true), nil); got == nil || got.Type != VisitorTypePreview || got.Greeting != "Welcome, A (Preview Mode)" {
		t.Fatalf("unexpected identity %+v", got)
	}
	if got := svc.Identity(sessionData(true, "a@example.com", true), admin); got == nil || got.Type != VisitorTypeAdmin {
		t.Fatalf("expected administrator identity, got %+v", got)
	}
}

func TestParseFlag(t *testing.T) {
	for _, v := range []string{"1", "true", "ON", " yes "} {
		if !ParseFlag(v) {
			t.Errorf("ParseFlag(%q) = false", v)
		}
	}
	for _, v := range []string{"", "0", "false", "preview"} {
		if ParseFlag(v) {
			t.Errorf("ParseFlag(%q) = true", v)
		}
	}
}

func sessionData(authenticated bool, email string, preview bool) session.Data {
	return session.Data{Authenticated: authenticated, UserEmail: email, UserName: "A", UserID: "1", PreviewMode: preview}
}
