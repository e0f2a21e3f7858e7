package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestContext(cookie *http.Cookie) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	c.Request = req
	return c, w
}

func responseCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestManagerLoadWithoutCookieIsNew(t *testing.T) {
	m := NewManager(NewMemoryStore(), Options{})
	c, w := newTestContext(nil)

	sess := m.Load(c)
	if sess.ID == "" || !sess.IsNew() {
		t.Fatalf("expected fresh unsaved session, got %+v", sess)
	}
	if sess.Data.IsAuthenticated() {
		t.Fatal("fresh session must not be authenticated")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatal("loading must not set a cookie")
	}
	if again := m.Load(c); again != sess {
		t.Fatal("expected session to be cached on the request")
	}
}

func TestManagerSaveAndReload(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, Options{CookieName: "gate", TTL: time.Hour})

	c, w := newTestContext(nil)
	sess := m.Load(c)
	sess.Data = Data{Authenticated: true, UserEmail: "a@example.com", UserName: "A", UserID: "7"}
	if err := m.Save(c, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	cookie := responseCookie(t, w, "gate")
	if !cookie.HttpOnly || cookie.Path != "/" || cookie.Value != sess.ID {
		t.Fatalf("unexpected cookie: %+v", cookie)
	}

	c2, _ := newTestContext(&http.Cookie{Name: "gate", Value: cookie.Value})
	loaded := m.Load(c2)
	if loaded.IsNew() || !loaded.Data.IsAuthenticated() || loaded.Data.UserEmail != "a@example.com" {
		t.Fatalf("expected persisted session, got %+v", loaded)
	}
}

func TestManagerUnknownCookieGetsFreshSession(t *testing.T) {
	m := NewManager(NewMemoryStore(), Options{})
	c, _ := newTestContext(&http.Cookie{Name: defaultCookieName, Value: "forged"})

	sess := m.Load(c)
	if !sess.IsNew() || sess.ID == "forged" {
		t.Fatalf("expected fresh session for unknown id, got %+v", sess)
	}
}

func TestManagerClearsFlagWithoutEmail(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Save(context.Background(), &Record{
		ID:        "stale",
		Data:      Data{Authenticated: true},
		ExpiresAt: time.Now().Add(time.Hour),
	})
	m := NewManager(store, Options{})
	c, _ := newTestContext(&http.Cookie{Name: defaultCookieName, Value: "stale"})

	sess := m.Load(c)
	if sess.Data.Authenticated {
		t.Fatal("expected stale flag to be cleared")
	}
	record, err := store.Load(context.Background(), "stale")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if record.Data.Authenticated {
		t.Fatal("expected stale flag to be cleared in the store")
	}
}

func TestManagerRenewDropsOldID(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, Options{})
	c, _ := newTestContext(nil)

	sess := m.Load(c)
	if err := m.Save(c, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	oldID := sess.ID
	if err := m.Renew(c, sess); err != nil {
		t.Fatalf("renew: %v", err)
	}
	if sess.ID == oldID {
		t.Fatal("expected a new id")
	}
	if _, err := store.Load(context.Background(), oldID); err != ErrNotFound {
		t.Fatalf("expected old record to be gone, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one record, got %d", store.Len())
	}
}

func TestManagerClearKeepsRecord(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, Options{})
	c, _ := newTestContext(nil)

	sess := m.Load(c)
	sess.Data = Data{Authenticated: true, UserEmail: "a@example.com"}
	if err := m.Save(c, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.Clear(c, sess); err != nil {
		t.Fatalf("clear: %v", err)
	}
	record, err := store.Load(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if record.Data.IsAuthenticated() || record.Data.UserEmail != "" {
		t.Fatalf("expected empty data, got %+v", record.Data)
	}
}

func TestManagerDestroyExpiresCookie(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, Options{})
	c, w := newTestContext(nil)

	sess := m.Load(c)
	if err := m.Save(c, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.Destroy(c, sess); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no records, got %d", store.Len())
	}

	var expired bool
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == defaultCookieName && cookie.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Fatal("expected an expiring cookie")
	}
}

func TestManagerSlidesExpiry(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, Options{TTL: time.Hour})
	_ = store.Save(context.Background(), &Record{
		ID:        "old",
		Data:      Data{Authenticated: true, UserEmail: "a@example.com"},
		ExpiresAt: time.Now().Add(10 * time.Minute),
	})

	c, w := newTestContext(&http.Cookie{Name: defaultCookieName, Value: "old"})
	sess := m.Load(c)
	if time.Until(sess.ExpiresAt) < 50*time.Minute {
		t.Fatalf("expected expiry to slide, got %v", sess.ExpiresAt)
	}
	responseCookie(t, w, defaultCookieName)
}

func TestMemoryStorePurge(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	_ = store.Save(ctx, &Record{ID: "live", ExpiresAt: now.Add(time.Hour)})
	_ = store.Save(ctx, &Record{ID: "dead", ExpiresAt: now.Add(-time.Minute)})

	if _, err := store.Load(ctx, "dead"); err != ErrNotFound {
		t.Fatalf("expected expired record to be hidden, got %v", err)
	}
	removed, err := store.Purge(ctx, now)
	if err != nil || removed != 1 {
		t.Fatalf("purge = %d, %v; want 1, nil", removed, err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one record left, got %d", store.Len())
	}
	if err := store.Save(ctx, &Record{}); err != ErrInvalidRecord {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}
