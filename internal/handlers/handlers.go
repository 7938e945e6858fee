package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/config"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/middleware"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/resource"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/service"
)

// Deps are the collaborators the HTTP layer needs. Redis may be nil.
type Deps struct {
	Log       zerolog.Logger
	Config    *config.AppConfig
	Store     repository.Store
	Redis     *redis.Client
	Auth      *service.AuthService
	Settings  *service.SettingsService
	Imports   *service.ImportService
	Resources []*resource.Engine
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	store     repository.Store
	redis     *redis.Client
	auth      *service.AuthService
	settings  *service.SettingsService
	imports   *service.ImportService
	resources []*resource.Engine
}

func NewHandlerSet(deps Deps) HandlerSet {
	return HandlerSet{
		log:       deps.Log,
		cfg:       deps.Config,
		store:     deps.Store,
		redis:     deps.Redis,
		auth:      deps.Auth,
		settings:  deps.Settings,
		imports:   deps.Imports,
		resources: deps.Resources,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	teachers := v1.Group("/teachers")
	{
		teachers.POST("/register", h.RegisterTeacher)
		teachers.POST("/login", h.Login)
		teachers.POST("/refresh-token", h.Refresh)
		teachers.GET("", h.ListTeachers)
		teachers.GET("/count", h.CountTeachers)
		teachers.GET("/:id", h.GetTeacher)

		protected := teachers.Group("")
		protected.Use(middleware.Auth(h.auth))
		protected.POST("/logout", h.Logout)
		protected.POST("/change-password", h.ChangePassword)
		protected.GET("/current", h.CurrentTeacher)
		protected.PATCH("/update-profile", h.UpdateProfile)
		protected.PATCH("/avatar", h.UpdateAvatar)
	}

	for _, engine := range h.resources {
		group := v1.Group("/" + engine.Schema().Name)
		if engine.Schema().Name == resource.CollectionStudents && h.imports != nil {
			group.POST("/import", h.ImportStudents)
		}
		resourceHandlers{engine: engine}.register(group)
	}

	v1.GET("/settings", h.GetSettings)
	v1.PUT("/settings", h.WriteSettings)
	v1.PATCH("/settings", h.WriteSettings)
}
