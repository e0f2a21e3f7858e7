package service

import (
	"context"
	"encoding/json"
	"errors"
	"sitegate/internal/auth"
	"sitegate/internal/entity"
	"strings"
	"testing"
	"time"
)

func newTestUserService() (*UserService, *fakeUserRepo) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, staticDomain{domain: "example.com"})
	svc.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return svc, repo
}

func TestAddUserValidation(t *testing.T) {
	tests := []struct {
		name    string
		domain  string
		req     entity.UserCreateRequest
		wantErr error
	}{
		{name: "missing name", domain: "example.com", req: entity.UserCreateRequest{Name: " ", Email: "a@example.com"}, wantErr: ErrInvalidName},
		{name: "missing email", domain: "example.com", req: entity.UserCreateRequest{Name: "A"}, wantErr: ErrInvalidEmail},
		{name: "wrong domain", domain: "example.com", req: entity.UserCreateRequest{Name: "A", Email: "a@other.com"}, wantErr: ErrInvalidEmail},
		{name: "subdomain", domain: "example.com", req: entity.UserCreateRequest{Name: "A", Email: "a@sub.example.com"}, wantErr: ErrInvalidEmail},
		{name: "malformed", domain: "example.com", req: entity.UserCreateRequest{Name: "A", Email: "not-an-email"}, wantErr: ErrInvalidEmail},
		{name: "no domain configured", domain: "", req: entity.UserCreateRequest{Name: "A", Email: "a@example.com"}, wantErr: ErrDomainNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeUserRepo()
			svc := NewUserService(repo, staticDomain{domain: tt.domain})
			_, _, err := svc.AddUser(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if repo.writeCount() != 0 {
				t.Fatal("validation failure must not touch the store")
			}
		})
	}
}

func TestAddUserRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	if _, _, err := svc.AddUser(ctx, entity.UserCreateRequest{Name: "A", Email: "a@example.com", Password: "secret-1"}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, _, err := svc.AddUser(ctx, entity.UserCreateRequest{Name: "B", Email: "A@EXAMPLE.com", Password: "secret-2"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	var userErr *UserError
	if !errors.As(err, &userErr) || userErr.Message != "This email already exists in the list." {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestAddUserGeneratesPassword(t *testing.T) {
	svc, repo := newTestUserService()

	user, generated, err := svc.AddUser(context.Background(), entity.UserCreateRequest{Name: "A", Email: "A@Example.com"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(generated) != auth.GeneratedPasswordLength {
		t.Fatalf("expected %d char password, got %q", auth.GeneratedPasswordLength, generated)
	}
	if user.Email != "a@example.com" {
		t.Fatalf("expected lower-cased email, got %q", user.Email)
	}
	stored, _ := repo.GetUserByID(context.Background(), user.ID)
	if stored.Password == generated {
		t.Fatal("plaintext must never be stored")
	}
	if err := auth.VerifyPassword(stored.Password, generated); err != nil {
		t.Fatalf("generated password does not verify: %v", err)
	}
}

func TestEditUser(t *testing.T) {
	svc, repo := newTestUserService()
	ctx := context.Background()

	a, _, _ := svc.AddUser(ctx, entity.UserCreateRequest{Name: "A", Email: "a@example.com", Password: "pw-a"})
	b, _, _ := svc.AddUser(ctx, entity.UserCreateRequest{Name: "B", Email: "b@example.com", Password: "pw-b"})

	if _, err := svc.EditUser(ctx, b.ID, entity.UserUpdateRequest{Name: "B", Email: "a@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.EditUser(ctx, 999, entity.UserUpdateRequest{Name: "X", Email: "x@example.com"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	updated, err := svc.EditUser(ctx, a.ID, entity.UserUpdateRequest{Name: " Alice ", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("edit own email: %v", err)
	}
	if updated.Name != "Alice" {
		t.Fatalf("expected trimmed name, got %q", updated.Name)
	}
	stored, _ := repo.GetUserByID(ctx, a.ID)
	if auth.VerifyPassword(stored.Password, "pw-a") != nil {
		t.Fatal("password must survive an edit without one")
	}

	newPassword := "pw-new"
	if _, err := svc.EditUser(ctx, a.ID, entity.UserUpdateRequest{Name: "Alice", Email: "a@example.com", Password: &newPassword}); err != nil {
		t.Fatalf("edit password: %v", err)
	}
	stored, _ = repo.GetUserByID(ctx, a.ID)
	if auth.VerifyPassword(stored.Password, newPassword) != nil {
		t.Fatal("expected new password to verify")
	}
}

func TestDeleteAndBulkDelete(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	var ids []uint
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		u, _, err := svc.AddUser(ctx, entity.UserCreateRequest{Name: "x", Email: email, Password: "pw"})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		ids = append(ids, u.ID)
	}

	if err := svc.DeleteUser(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := svc.DeleteUser(ctx, ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.BulkDelete(ctx, []uint{0}); !errors.Is(err, ErrNoUsersSelected) {
		t.Fatalf("expected ErrNoUsersSelected, got %v", err)
	}
	deleted, err := svc.BulkDelete(ctx, []uint{ids[1], ids[2], ids[2], ids[0]})
	if err != nil || deleted != 2 {
		t.Fatalf("BulkDelete = %d, %v; want 2", deleted, err)
	}
}

func TestListUsersClampsPaging(t *testing.T) {
	svc, _ := newTestUserService()
	query := &entity.UserQuery{BaseParams: entity.BaseParams{PageSize: 1000}}
	if _, _, err := svc.ListUsers(context.Background(), query); err != nil {
		t.Fatalf("list: %v", err)
	}
	if query.Page != 1 || query.PageSize != maxPageSize {
		t.Fatalf("expected page 1 size %d, got %d/%d", maxPageSize, query.Page, query.PageSize)
	}
}

func TestResetPasswordReturnsPlaintextOnce(t *testing.T) {
	svc, repo := newTestUserService()
	ctx := context.Background()

	user, _, err := svc.AddUser(ctx, entity.UserCreateRequest{Name: "A", Email: "a@example.com", Password: "old-password"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	plain, err := svc.ResetPassword(ctx, user.ID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}

	stored, _ := repo.GetUserByID(ctx, user.ID)
	if stored.Password == plain || strings.Contains(stored.Password, plain) {
		t.Fatal("plaintext must not be retrievable from the store")
	}
	if auth.VerifyPassword(stored.Password, "old-password") == nil {
		t.Fatal("old password must stop working")
	}
	if auth.VerifyPassword(stored.Password, plain) != nil {
		t.Fatal("new password must work")
	}
	if _, err := svc.ResetPassword(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestImportCSV(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	input := strings.Join([]string{
		"Name,Email,Password",
		"Alice,alice@example.com,alice-pw",
		"Bob,bob@example.com,",
		"Mallory,mallory@evil.com,x",
		",nameless@example.com,",
		"",
		"Alice Again,alice@example.com,pw",
	}, "\n")

	report, err := svc.Import(ctx, "users.CSV", strings.NewReader(input))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Added != 3 || report.Skipped != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Credentials) != 2 {
		t.Fatalf("expected generated passwords for bob and nameless, got %+v", report.Credentials)
	}
	if report.Errors[0].Row != 4 || report.Errors[0].Email != "mallory@evil.com" {
		t.Fatalf("unexpected first error: %+v", report.Errors[0])
	}

	user, err := svc.FindByEmail(ctx, "nameless@example.com")
	if err != nil || user.Name != "nameless" {
		t.Fatalf("expected local part as name, got %+v, %v", user, err)
	}
}

func TestImportLegacySingleColumnCSV(t *testing.T) {
	svc, _ := newTestUserService()
	report, err := svc.Import(context.Background(), "emails.csv", strings.NewReader("one@example.com\ntwo@example.com\n"))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Added != 2 {
		t.Fatalf("expected 2 added, got %+v", report)
	}
	user, err := svc.FindByEmail(context.Background(), "two@example.com")
	if err != nil || user.Name != "two" {
		t.Fatalf("unexpected user %+v, %v", user, err)
	}
}

func TestImportJSON(t *testing.T) {
	svc, _ := newTestUserService()
	input := `["plain@example.com", {"name": "Obj", "email": "obj@example.com", "password": "pw"}, {"email": "bad@other.com"}, 42]`

	report, err := svc.Import(context.Background(), "users.json", strings.NewReader(input))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Added != 2 || report.Skipped != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	user, err := svc.FindByEmail(context.Background(), "obj@example.com")
	if err != nil || user.Name != "Obj" || auth.VerifyPassword(user.Password, "pw") != nil {
		t.Fatalf("unexpected user %+v, %v", user, err)
	}
}

func TestImportRejectsUnknownFormat(t *testing.T) {
	svc, _ := newTestUserService()
	if _, err := svc.Import(context.Background(), "users.xlsx", strings.NewReader("")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := svc.Import(context.Background(), "users.json", strings.NewReader("{")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for broken json, got %v", err)
	}
}

func TestExportCSV(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()
	objects := newMemoryObjects()
	svc.SetExportArchive(objects)

	if _, err := svc.Export(ctx, "csv"); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
	if _, _, err := svc.AddUser(ctx, entity.UserCreateRequest{Name: "Alice", Email: "alice@example.com", Password: "secret"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	file, err := svc.Export(ctx, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if file.Filename != "email-restriction-users-2024-05-06-07-08-09.csv" {
		t.Fatalf("unexpected filename %q", file.Filename)
	}
	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	if lines[0] != "ID,Name,Email,Created At,Updated At" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "1,Alice,alice@example.com,") {
		t.Fatalf("unexpected rows %q", lines)
	}
	if strings.Contains(string(file.Data), "$2a$") {
		t.Fatal("export must not contain password hashes")
	}
	if file.ArchiveKey == "" || len(objects.objects) != 1 {
		t.Fatalf("expected export to be archived, key %q", file.ArchiveKey)
	}
}

func TestExportJSON(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()
	if _, _, err := svc.AddUser(ctx, entity.UserCreateRequest{Name: "Alice", Email: "alice@example.com", Password: "secret"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	file, err := svc.Export(ctx, "JSON")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var rows []map[string]interface{}
	if err := json.Unmarshal(file.Data, &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0]["email"] != "alice@example.com" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if _, ok := rows[0]["password"]; ok {
		t.Fatal("export must not contain passwords")
	}
	if _, err := svc.Export(ctx, "xml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
