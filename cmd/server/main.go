package main

import (
	"log"
	"os"

	"feedlink/internal/db"
	"feedlink/internal/handlers"
	"feedlink/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	// Initialize Database
	db.Init()

	// Initialize Gin
	r := gin.Default()

	// Setup Sessions
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "secret_key_change_me"
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("feedlink_session", store))

	// Middleware
	r.Use(middleware.LoadUser())

	// Handlers
	postHandler := handlers.NewPostHandler()
	commentHandler := handlers.NewCommentHandler()
	likeHandler := handlers.NewLikeHandler()
	notificationHandler := handlers.NewNotificationHandler()
	realtimeHandler := handlers.NewRealtimeHandler()

	api := r.Group("/api")

	// Public Routes
	api.GET("/posts/:pid/comments", commentHandler.List)

	// Protected Routes
	authorized := api.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/posts", postHandler.Create)
		authorized.DELETE("/posts/:pid", postHandler.Delete)
		authorized.POST("/posts/:pid/comments", commentHandler.Create)
		authorized.POST("/posts/:pid/like", likeHandler.Toggle)
		authorized.GET("/notifications", notificationHandler.List)
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll)
		authorized.GET("/ws", realtimeHandler.Subscribe)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("FeedLink server starting on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
