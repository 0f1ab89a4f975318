package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/fitadvisor/backend/internal/api/handlers"
	"github.com/fitadvisor/backend/internal/chat"
	"github.com/fitadvisor/backend/internal/config"
	"github.com/fitadvisor/backend/internal/database"
	"github.com/fitadvisor/backend/internal/llm"
	"github.com/fitadvisor/backend/internal/prompt"
	"github.com/fitadvisor/backend/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Startup check failed: %v", err)
	}

	llmClient := llm.NewClient(
		cfg.AnthropicAPIKey,
		cfg.ModelName,
		cfg.ModelMaxTokens,
		time.Duration(cfg.ModelTimeoutSeconds)*time.Second,
	)

	// Run the remaining startup checks, collecting every failure into one
	// consolidated diagnostic before refusing to serve.
	var failures []string

	db, err := database.InitDB(cfg)
	if err != nil {
		failures = append(failures, "Unable to connect to database: "+err.Error())
	}

	probeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := llmClient.Probe(probeCtx); err != nil {
		failures = append(failures, "Unable to connect to model API: "+err.Error())
	}
	cancel()

	if !prompt.ValidateTemplate(cfg.TemplatePath) {
		failures = append(failures, "System prompt template not found at "+cfg.TemplatePath)
	}

	if len(failures) > 0 {
		log.Fatalf("Startup checks failed:\n  - %s", strings.Join(failures, "\n  - "))
	}
	log.Println("All startup checks passed. Application ready.")

	// Redis is optional; a nil client disables document caching.
	redisClient := database.InitRedis(cfg)

	documents := store.NewDocuments(db, redisClient)
	conversations := store.NewConversations(db)
	renderer := prompt.NewRenderer(cfg.TemplatePath, cfg.ApplicantEmail)
	orchestrator := chat.NewOrchestrator(conversations, llmClient, renderer, cfg.HistoryTokenBudget)

	r := setupRouter(documents, conversations, orchestrator, cfg)

	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func setupRouter(documents handlers.DocumentStore, conversations chat.ConversationStore, orchestrator handlers.Orchestrator, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	// Configure CORS middleware
	headers := cors.DefaultConfig()
	if cfg.FrontendURL != "" {
		headers.AllowOrigins = []string{cfg.FrontendURL}
	} else {
		headers.AllowAllOrigins = true
	}
	headers.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	headers.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	headers.ExposeHeaders = []string{"Content-Length"}
	r.Use(cors.New(headers))

	handler := handlers.NewHandler(documents, conversations, orchestrator, cfg)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.GET("/session", handler.OpenSession)

		sessions := api.Group("/sessions")
		{
			sessions.GET("/:sessionId/messages", handler.GetSessionMessages)
			sessions.POST("/:sessionId/messages", handler.StreamTurn)
		}
	}

	return r
}
