// Package site serves the protected front-end content, either from a local
// directory or by proxying an upstream origin.
package site

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"slices"
	"sitegate/internal/config"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewHandler returns the content handler configured by SITE_UPSTREAM or SITE_DIR.
// An upstream wins when both are set.
func NewHandler(cfg config.Config) (http.Handler, error) {
	if upstream := strings.TrimSpace(cfg.SiteUpstream); upstream != "" {
		return NewProxy(upstream, config.AdminCookieName, cfg.SessionCookieName)
	}
	return NewDirectory(cfg.SiteDir)
}

// NewDirectory serves static files from dir without directory listings.
func NewDirectory(dir string) (http.Handler, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("site directory is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat site directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("site directory %q is not a directory", dir)
	}
	logrus.WithField("dir", dir).Info("serving site from directory")
	return http.FileServer(indexOnlyFS{gin.Dir(dir, false)}), nil
}

// indexOnlyFS hides directories that have no index.html.
type indexOnlyFS struct {
	http.FileSystem
}

func (fsys indexOnlyFS) Open(name string) (http.File, error) {
	f, err := fsys.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		index, err := fsys.FileSystem.Open(path.Join(name, "index.html"))
		if err != nil {
			f.Close()
			return nil, os.ErrNotExist
		}
		index.Close()
	}
	return f, nil
}

// NewProxy forwards requests to the upstream origin, keeping the path and query.
// Cookies named in privateCookies are removed before the request leaves the gate.
func NewProxy(rawURL string, privateCookies ...string) (http.Handler, error) {
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse site upstream: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" || target.Host == "" {
		return nil, fmt.Errorf("site upstream must be an absolute http(s) URL: %q", rawURL)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		originalHost := r.Host
		director(r)
		r.Host = target.Host
		r.Header.Set("X-Forwarded-Host", originalHost)
		// admin tokens and session ids stay with the gate
		r.Header.Del("Authorization")
		stripCookies(r, privateCookies)
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logrus.WithError(err).WithField("path", r.URL.Path).Error("upstream request failed")
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}
	logrus.WithField("upstream", target.String()).Info("proxying site to upstream")
	return proxy, nil
}

func stripCookies(r *http.Request, names []string) {
	if len(names) == 0 || r.Header.Get("Cookie") == "" {
		return
	}
	cookies := r.Cookies()
	r.Header.Del("Cookie")
	for _, cookie := range cookies {
		if slices.Contains(names, cookie.Name) {
			continue
		}
		r.AddCookie(cookie)
	}
}
