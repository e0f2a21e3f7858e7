package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	contextKey        = "sitegate-session"
	defaultCookieName = "sitegate_session"
	defaultTTL        = 24 * time.Hour
	storeTimeout      = 5 * time.Second
)

// Session is the request-scoped view of a visitor session.
type Session struct {
	ID        string
	Data      Data
	ExpiresAt time.Time
	persisted bool
}

// IsNew reports whether the session has never been saved.
func (s *Session) IsNew() bool {
	return s == nil || !s.persisted
}

// Options configures cookie handling and idle expiry.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager binds sessions to requests through a cookie.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

// NewManager creates a session manager over store.
func NewManager(store Store, opts Options) *Manager {
	name := strings.TrimSpace(opts.CookieName)
	if name == "" {
		name = defaultCookieName
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Manager{
		store:      store,
		cookieName: name,
		ttl:        ttl,
		secure:     opts.Secure,
		now:        time.Now,
	}
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// TTL returns the idle expiry.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Load returns the visitor's session, creating an empty unsaved one when the
// cookie is missing, unknown or expired. Store failures yield an empty session.
func (m *Manager) Load(c *gin.Context) *Session {
	if cached, ok := c.Get(contextKey); ok {
		if sess, ok := cached.(*Session); ok {
			return sess
		}
	}

	sess := m.load(c)
	c.Set(contextKey, sess)
	return sess
}

func (m *Manager) load(c *gin.Context) *Session {
	id, err := c.Cookie(m.cookieName)
	if err != nil || strings.TrimSpace(id) == "" {
		return m.fresh()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	record, err := m.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logrus.WithError(err).Error("failed to load session")
		}
		return m.fresh()
	}

	sess := &Session{ID: record.ID, Data: record.Data, ExpiresAt: record.ExpiresAt, persisted: true}
	if record.Data.Authenticated && !record.Data.IsAuthenticated() {
		// a flag without cached identity is stale
		sess.Data = Data{}
		if err := m.Save(c, sess); err != nil {
			logrus.WithError(err).Warn("failed to reset stale session")
		}
		return sess
	}
	if sess.Data.IsAuthenticated() && sess.ExpiresAt.Sub(m.now()) < m.ttl/2 {
		if err := m.Save(c, sess); err != nil {
			logrus.WithError(err).Warn("failed to extend session")
		}
	}
	return sess
}

func (m *Manager) fresh() *Session {
	return &Session{ID: uuid.NewString()}
}

// Save persists the session with a renewed expiry and refreshes the cookie.
func (m *Manager) Save(c *gin.Context, sess *Session) error {
	if sess == nil {
		return ErrInvalidRecord
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	sess.ExpiresAt = m.now().Add(m.ttl)
	if err := m.store.Save(ctx, &Record{ID: sess.ID, Data: sess.Data, ExpiresAt: sess.ExpiresAt}); err != nil {
		return err
	}
	sess.persisted = true
	m.writeCookie(c, sess.ID, int(m.ttl/time.Second))
	c.Set(contextKey, sess)
	return nil
}

// Renew moves the session to a new id, dropping the old record.
func (m *Manager) Renew(c *gin.Context, sess *Session) error {
	if sess == nil {
		return ErrInvalidRecord
	}
	if sess.persisted {
		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		err := m.store.Delete(ctx, sess.ID)
		cancel()
		if err != nil {
			return err
		}
	}
	sess.ID = uuid.NewString()
	sess.persisted = false
	return m.Save(c, sess)
}

// Clear removes every field from the session and saves it.
func (m *Manager) Clear(c *gin.Context, sess *Session) error {
	if sess == nil {
		return ErrInvalidRecord
	}
	sess.Data = Data{}
	return m.Save(c, sess)
}

// Destroy deletes the session record and expires the cookie.
func (m *Manager) Destroy(c *gin.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return err
	}
	sess.Data = Data{}
	sess.persisted = false
	m.writeCookie(c, "", -1)
	c.Set(contextKey, m.fresh())
	return nil
}

func (m *Manager) writeCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, value, maxAge, "/", "", m.secure, true)
}

// RunJanitor purges expired records until ctx is done. Stores without expiry
// of their own implement Purger; others are left alone.
func RunJanitor(ctx context.Context, store Store, interval time.Duration) {
	purger, ok := store.(Purger)
	if !ok {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := purger.Purge(ctx, now)
			if err != nil {
				logrus.WithError(err).Warn("failed to purge expired sessions")
				continue
			}
			if removed > 0 {
				logrus.WithField("removed", removed).Info("purged expired sessions")
			}
		}
	}
}
