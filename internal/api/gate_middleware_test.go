package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sitegate/internal/entity"
	"sitegate/internal/service"
	"sitegate/internal/session"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestGateRendersLoginPage(t *testing.T) {
	srv := newTestServer(t, "example.com")
	c := srv.client()

	w := c.get("/docs/page.html?x=1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, protectedBody) {
		t.Fatal("protected content leaked to anonymous visitor")
	}
	for _, want := range []string{`id="restricted-login-form"`, "@example.com", `name="is_preview" value="0"`} {
		if !strings.Contains(body, want) {
			t.Errorf("login page missing %q", want)
		}
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if !nonceField.MatchString(body) {
		t.Error("login page has no nonce")
	}
	if _, ok := c.cookies[srv.handler.sessions.CookieName()]; !ok {
		t.Error("login page did not issue a session cookie")
	}
}

func TestGateSetupRequired(t *testing.T) {
	srv := newTestServer(t, "")
	c := srv.client()

	w := c.get("/")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Email Restriction Not Configured") {
		t.Errorf("unexpected setup page: %q", w.Body.String())
	}

	// management API stays reachable so the domain can be configured
	if w := c.get("/api/admin/auth/status"); w.Code != http.StatusOK {
		t.Fatalf("auth status = %d, want 200", w.Code)
	}
}

func TestVisitorLoginFlow(t *testing.T) {
	srv := newTestServer(t, "example.com")
	srv.addUser("Jane Doe", "jane@example.com", "correct-horse")
	c := srv.client()

	nonce := c.loginNonce("/private")
	firstSession := c.cookies[srv.handler.sessions.CookieName()]

	tests := []struct {
		name     string
		email    string
		password string
		status   int
		message  string
	}{
		{name: "foreign domain", email: "jane@other.com", password: "correct-horse", status: http.StatusUnauthorized, message: "Invalid email domain. Only @example.com emails are allowed."},
		{name: "unknown user", email: "nobody@example.com", password: "correct-horse", status: http.StatusUnauthorized, message: service.MsgEmailNotAuthorized},
		{name: "wrong password", email: "jane@example.com", password: "wrong", status: http.StatusUnauthorized, message: service.MsgInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := c.postForm("/api/access/login", url.Values{
				"email": {tt.email}, "password": {tt.password}, "nonce": {nonce}, "redirect_url": {"/private"},
			})
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			resp := decodeAccess(t, w)
			if resp.Success || resp.Data.Message != tt.message {
				t.Fatalf("response = %+v", resp)
			}
		})
	}

	w := c.postForm("/api/access/login", url.Values{
		"email": {"Jane@Example.com"}, "password": {"correct-horse"}, "nonce": {nonce}, "redirect_url": {"/private"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeAccess(t, w)
	if !resp.Success || resp.Data.Message != service.MsgLoginSuccess || resp.Data.RedirectURL != "/private" {
		t.Fatalf("login response = %+v", resp)
	}
	if c.cookies[srv.handler.sessions.CookieName()] == firstSession {
		t.Error("session id was not renewed after login")
	}

	if w := c.get("/private"); w.Code != http.StatusOK || w.Body.String() != protectedBody {
		t.Fatalf("content after login: %d %q", w.Code, w.Body.String())
	}

	w = c.get("/api/access/me")
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d", w.Code)
	}
	var me struct {
		Success bool `json:"success"`
		Data    struct {
			Identity    entity.VisitorIdentity `json:"identity"`
			LogoutNonce string                 `json:"logout_nonce"`
		} `json:"data"`
	}
	decodeJSON(t, w, &me)
	if !me.Success || me.Data.Identity.Email != "jane@example.com" || me.Data.Identity.Name != "Jane Doe" {
		t.Fatalf("identity = %+v", me.Data.Identity)
	}
	if me.Data.LogoutNonce == "" {
		t.Fatal("missing logout nonce")
	}

	w = c.postForm("/api/access/logout", url.Values{"nonce": {me.Data.LogoutNonce}})
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeAccess(t, w); !resp.Success || resp.Data.Message != service.MsgLogoutSuccess {
		t.Fatalf("logout response = %+v", resp)
	}
	if data, ok := srv.sessionData(c); !ok || data != (session.Data{}) {
		t.Fatalf("session after logout = %+v (stored %v)", data, ok)
	}

	if w := c.get("/private"); strings.Contains(w.Body.String(), protectedBody) {
		t.Fatal("content still served after logout")
	}
	if w := c.get("/api/access/me"); w.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d, want 401", w.Code)
	}
}

func TestVisitorLogoutAlwaysSucceeds(t *testing.T) {
	srv := newTestServer(t, "example.com")
	srv.addUser("Jane Doe", "jane@example.com", "correct-horse")

	c := srv.client()
	loginNonce := c.loginNonce("/")
	if w := c.postForm("/api/access/login", url.Values{
		"email": {"jane@example.com"}, "password": {"correct-horse"}, "nonce": {loginNonce},
	}); w.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", w.Code, w.Body.String())
	}
	if data, _ := srv.sessionData(c); !data.IsAuthenticated() {
		t.Fatalf("session not authenticated after login: %+v", data)
	}

	// the login nonce was bound to the pre-login session id, so it is stale here
	for i, nonce := range []string{loginNonce, "", "x"} {
		w := c.postForm("/api/access/logout", url.Values{"nonce": {nonce}})
		if w.Code != http.StatusOK {
			t.Fatalf("logout #%d status = %d: %s", i+1, w.Code, w.Body.String())
		}
		if resp := decodeAccess(t, w); !resp.Success || resp.Data.Message != service.MsgLogoutSuccess {
			t.Fatalf("logout #%d response = %+v", i+1, resp)
		}
		if data, ok := srv.sessionData(c); !ok || data != (session.Data{}) {
			t.Fatalf("logout #%d left session %+v (stored %v)", i+1, data, ok)
		}
	}

	fresh := srv.client()
	before := srv.sessions.Len()
	w := fresh.postForm("/api/access/logout", url.Values{"nonce": {"x"}})
	if w.Code != http.StatusOK {
		t.Fatalf("logout without session = %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeAccess(t, w); !resp.Success {
		t.Fatalf("logout without session response = %+v", resp)
	}
	if _, ok := fresh.cookies[srv.handler.sessions.CookieName()]; ok {
		t.Fatal("logout without session created one")
	}
	if after := srv.sessions.Len(); after != before {
		t.Fatalf("stored sessions = %d, want %d", after, before)
	}
}

func TestVisitorLoginRejectsForeignNonce(t *testing.T) {
	srv := newTestServer(t, "example.com")
	srv.addUser("Jane Doe", "jane@example.com", "correct-horse")

	victim := srv.client()
	nonce := victim.loginNonce("/")

	attacker := srv.client()
	attacker.get("/")
	w := attacker.postForm("/api/access/login", url.Values{
		"email": {"jane@example.com"}, "password": {"correct-horse"}, "nonce": {nonce},
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if resp := decodeAccess(t, w); resp.Data.Message != service.MsgSecurityCheckFailed {
		t.Fatalf("response = %+v", resp)
	}

	w = attacker.postForm("/api/access/login", url.Values{"email": {"jane@example.com"}, "password": {"correct-horse"}})
	if w.Code != http.StatusForbidden {
		t.Fatalf("missing nonce status = %d, want 403", w.Code)
	}
}

func TestLoginFormPostedToContentPath(t *testing.T) {
	srv := newTestServer(t, "example.com")
	srv.addUser("Jane Doe", "jane@example.com", "correct-horse")
	c := srv.client()
	nonce := c.loginNonce("/")

	// the login marker alone never yields content
	if w := c.get("/?restricted_login"); strings.Contains(w.Body.String(), protectedBody) {
		t.Fatal("login marker bypassed the gate")
	}

	w := c.postForm("/", url.Values{
		"action": {"restricted_login"}, "email": {"jane@example.com"}, "password": {"correct-horse"}, "nonce": {nonce},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeAccess(t, w); !resp.Success {
		t.Fatalf("response = %+v", resp)
	}
	if w := c.get("/"); w.Body.String() != protectedBody {
		t.Fatalf("content after login = %q", w.Body.String())
	}
}

func TestAdminBypassAndPreview(t *testing.T) {
	srv := newTestServer(t, "")
	admin := srv.client()
	admin.registerAdmin("owner@corp.test", "admin-password")

	// administrators see content even before a domain is configured
	if w := admin.get("/"); w.Code != http.StatusOK || w.Body.String() != protectedBody {
		t.Fatalf("admin bypass: %d %q", w.Code, w.Body.String())
	}

	w := admin.get("/?restricted_login=preview")
	if w.Code != http.StatusOK {
		t.Fatalf("preview status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`value="owner@corp.test"`, `name="is_preview" value="1"`, "Test Login"} {
		if !strings.Contains(body, want) {
			t.Errorf("preview page missing %q", want)
		}
	}
	nonce := nonceField.FindStringSubmatch(body)
	if nonce == nil {
		t.Fatal("preview page has no nonce")
	}

	w = admin.postForm("/api/access/login", url.Values{
		"email": {"owner@corp.test"}, "password": {"admin-password"}, "nonce": {nonce[1]}, "is_preview": {"1"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("preview login = %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeAccess(t, w); resp.Data.Message != service.MsgPreviewLoginSuccess {
		t.Fatalf("preview response = %+v", resp)
	}

	// anonymous visitors still get the setup page
	if w := srv.client().get("/"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("anonymous status = %d, want 503", w.Code)
	}
	// and the preview marker alone does nothing for them
	if w := srv.client().get("/?restricted_login=preview"); strings.Contains(w.Body.String(), "Test Login") {
		t.Fatal("preview page rendered for anonymous visitor")
	}
}

type stubPrivileges struct{ admin *entity.DbAdmin }

func (s stubPrivileges) PrivilegedAdmin(*gin.Context) *entity.DbAdmin { return s.admin }

func TestSetPrivilegeChecker(t *testing.T) {
	srv := newTestServer(t, "example.com")
	srv.handler.SetPrivilegeChecker(stubPrivileges{admin: &entity.DbAdmin{ID: 9, Email: "ops@example.com", Role: entity.AdminRoleSuperAdmin, IsActive: true}})

	if w := srv.client().get("/"); w.Body.String() != protectedBody {
		t.Fatalf("custom checker ignored: %q", w.Body.String())
	}

	srv.handler.SetPrivilegeChecker(nil)
	if w := srv.client().get("/"); w.Body.String() != protectedBody {
		t.Fatal("nil checker replaced the configured one")
	}
}

func TestPeekFormRestoresBody(t *testing.T) {
	payload := "action=restricted_login&email=a%40b.c"
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	form, err := peekForm(req)
	if err != nil {
		t.Fatalf("peekForm: %v", err)
	}
	if form.Get("action") != "restricted_login" || form.Get("email") != "a@b.c" {
		t.Fatalf("form = %v", form)
	}
	if err := req.ParseForm(); err != nil {
		t.Fatalf("ParseForm after peek: %v", err)
	}
	if req.PostForm.Get("email") != "a@b.c" {
		t.Fatalf("body not restored: %v", req.PostForm)
	}

	jsonReq := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"restricted_login"}`))
	jsonReq.Header.Set("Content-Type", "application/json")
	if form, _ := peekForm(jsonReq); len(form) != 0 {
		t.Fatalf("json body parsed as form: %v", form)
	}
}
