package handler

import (
	"file-sharing-service/internal/handler/authHandler"
	"file-sharing-service/internal/handler/fileHandler"
	"file-sharing-service/pkg/logger"
	"file-sharing-service/pkg/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Auth          *authHandler.AuthHandler
	Files         *fileHandler.FileHandler
	Authenticator middleware.Authenticator
	Health        gin.HandlerFunc
	Logger        *logger.Logger
	// MaxMultipartMemory caps what a multipart form keeps in memory; the
	// rest spills to temp files.
	MaxMultipartMemory int64
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	if d.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = d.MaxMultipartMemory
	}
	log := d.Logger
	if log == nil {
		log = logger.NewNop()
	}
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	config.ExposeHeaders = []string{middleware.RequestIDHeader}
	r.Use(cors.New(config))

	if d.Health != nil {
		r.GET("/healthz", d.Health)
	}

	requireAuth := middleware.Auth(d.Authenticator)

	auth := r.Group("/auth")
	{
		auth.POST("/register", d.Auth.Register)
		auth.POST("/login", d.Auth.Login)
		auth.POST("/refresh", d.Auth.Refresh)
		auth.POST("/logout", requireAuth, d.Auth.Logout)
	}

	user := r.Group("/user", requireAuth)
	{
		user.GET("/files", d.Files.List)
		user.DELETE("/files", d.Files.DeleteAll)
		user.DELETE("/files/:id", d.Files.DeleteFile)
		user.POST("/upload", d.Files.Upload)
		user.DELETE("", d.Files.DeleteUser)
	}
	return r
}
