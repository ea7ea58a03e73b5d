package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workday/backend/internal/handler"
	"workday/backend/internal/middleware"
	"workday/backend/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	workdayHandler *handler.WorkdayHandler,
	notifierHandler *handler.NotifierHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	workday := api.Group("/workday")
	workday.GET("", workdayHandler.Get)
	workday.POST("", workdayHandler.Post)
	workday.GET("/watch", workdayHandler.Watch)

	notifier := api.Group("/notifier")
	notifier.GET("/key", notifierHandler.PublicKey)
	notifier.POST("", notifierHandler.Subscribe)
	notifier.PATCH("", notifierHandler.Update)
	notifier.DELETE("", notifierHandler.Unsubscribe)

	api.GET("/workdata", middleware.Auth(authService), workdayHandler.History)

	return engine
}
