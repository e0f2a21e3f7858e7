package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sitegate/internal/api"
	"sitegate/internal/config"
	"sitegate/internal/model"
	"sitegate/internal/session"
	"sitegate/internal/site"
	"sitegate/internal/storage"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 初始化logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise repository")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := model.SeedAllowedDomain(ctx, repo, cfg); err != nil {
		logrus.WithError(err).Warn("failed to seed allowed domain")
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise storage")
		return
	}

	sessionStore, err := newSessionStore(ctx, cfg, repo)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise session store")
		return
	}
	if closer, ok := sessionStore.(io.Closer); ok {
		defer closer.Close()
	}
	go session.RunJanitor(ctx, sessionStore, 15*time.Minute)

	sessions := session.NewManager(sessionStore, session.Options{
		CookieName: cfg.SessionCookieName,
		TTL:        time.Duration(cfg.SessionTTLMinutes) * time.Minute,
		Secure:     cfg.SessionCookieSecure,
	})

	content, err := site.NewHandler(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise site content")
		return
	}

	httpHandler, err := api.NewHTTPHandler(cfg, repo, store, sessions)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	httpHandler.RegisterRoutes(r, content)

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logrus.WithField("host", serverHost).Info("服务器启动")
	// 创建HTTP服务器
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  180 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("服务器关闭失败")
		}
	}()

	err = httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Error("服务器启动失败")
	}
}

// newSessionStore 根据 SESSION_BACKEND 选择会话存储
func newSessionStore(ctx context.Context, cfg config.Config, repo model.Repository) (session.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.SessionBackend)) {
	case "", "database":
		return session.NewDatabaseStore(repo), nil
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		return session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.SessionBackend)
	}
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 处理请求
		c.Next()
		// 记录请求结束
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
