package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/docanalysis/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	healthHandler := handler.NewHealthHandler(deps, "document-analysis-api")
	r.GET("/health", healthHandler.Health)

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		documents := v1.Group("/documents")
		{
			// POST /api/v1/documents - Queue one document for analysis
			documents.POST("", jobHandler.SubmitDocument)

			// POST /api/v1/documents/batch - Queue a manifest of documents
			documents.POST("/batch", jobHandler.SubmitBatch)

			// GET /api/v1/documents - List job records with filtering and pagination
			documents.GET("", jobHandler.ListDocuments)

			// GET /api/v1/documents/:document_id - Get a job record
			documents.GET("/:document_id", jobHandler.GetDocument)

			// GET /api/v1/documents/:document_id/text - Rendered analysis text
			documents.GET("/:document_id/text", jobHandler.GetDocumentText)

			// GET /api/v1/documents/:document_id/progress - Latest progress report
			documents.GET("/:document_id/progress", jobHandler.GetDocumentProgress)
		}
	}

	return r
}
