package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/postly/postly/config"
	"github.com/postly/postly/controllers"
	"github.com/postly/postly/middleware"
	"github.com/postly/postly/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "X-Requested-With", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static("/uploads/images", cfg.UploadDir)

	postController := controllers.NewPostController(db)
	userController := controllers.NewUserController(db)

	api := r.Group("/api")

	posts := api.Group("/posts")
	posts.GET("/user/:uid", postController.GetUserPosts)
	posts.GET("/:pid", postController.GetPost)

	postMutations := posts.Group("")
	postMutations.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	postMutations.POST("", postController.CreatePost)
	postMutations.PATCH("/:pid", postController.UpdatePost)
	postMutations.DELETE("/:pid", postController.DeletePost)
	postMutations.PUT("/:pid/reaction", postController.React)
	postMutations.DELETE("/:pid/reaction", postController.Unreact)

	users := api.Group("/users")
	users.GET("", userController.ListUsers)
	users.POST("/signup", middleware.RateLimitMiddleware(), userController.Signup)
	users.POST("/login", middleware.RateLimitMiddleware(), userController.Login)
	users.POST("/logout", middleware.AuthRequired(), userController.Logout)

	r.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"message": "Could not find this route."})
	})

	return r
}
