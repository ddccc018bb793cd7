package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/TWolczanski/image-api/internal/config"
	"github.com/TWolczanski/image-api/internal/middleware"
	"github.com/TWolczanski/image-api/internal/repository"
	"github.com/TWolczanski/image-api/internal/service"
)

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	auth     *service.AuthService
	uploads  *service.UploadService
	links    *service.LinkService
	users    repository.UserStore
	sessions repository.SessionStore
	images   repository.ImageStore
	db       *pgxpool.Pool
	cache    *redis.Client
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	auth *service.AuthService,
	uploads *service.UploadService,
	links *service.LinkService,
	users repository.UserStore,
	sessions repository.SessionStore,
	images repository.ImageStore,
	db *pgxpool.Pool,
	cache *redis.Client,
) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		auth:     auth,
		uploads:  uploads,
		links:    links,
		users:    users,
		sessions: sessions,
		images:   images,
		db:       db,
		cache:    cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)

	authed := v1.Group("/auth")
	authed.Use(middleware.Auth(h.cfg, h.users, h.sessions))
	authed.POST("/logout", h.Logout)
	authed.GET("/me", h.Me)

	images := v1.Group("/images")
	images.Use(middleware.Auth(h.cfg, h.users, h.sessions))
	images.POST("", h.UploadImage)
	images.GET("", h.ListImages)
	images.POST("/links", h.CreateLink)
	images.GET("/links/:id", h.ResolveLink)
}
