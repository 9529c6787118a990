package routes

import (
	"net/http"
	"strings"

	"rag-document-platform/internal/logger"
	"rag-document-platform/internal/telemetry"
	"rag-document-platform/middleware"
	"rag-document-platform/services"
	"rag-document-platform/utils"

	"github.com/gin-gonic/gin"
)

// QueryRequest is the POST /query payload.
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
}

// SetupQueryRoutes wires the question-answering endpoint. cache may be a
// disabled AnswerCache; the workflow runs uncached then.
func SetupQueryRoutes(router *gin.Engine, workflow *services.QueryWorkflow, cache *services.AnswerCache, metrics *telemetry.Metrics) {
	router.POST("/query", func(c *gin.Context) {
		var req QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		question := strings.TrimSpace(req.Question)
		if question == "" {
			utils.RespondWithBadRequest(c, "Question must not be empty", nil)
			return
		}

		ctx := c.Request.Context()
		if result, ok := cache.Get(ctx, question); ok {
			logger.Debug("Answer cache hit", "request_id", middleware.GetRequestID(c))
			c.JSON(http.StatusOK, result)
			return
		}

		result := workflow.Run(ctx, question)
		metrics.RecordQuery(ctx, result.Failed, result.Rewritten)

		// The workflow never raises: a sentinel failure response maps to a
		// 5xx here, everything else is a normal answer.
		if result.Failed {
			c.JSON(http.StatusInternalServerError, gin.H{
				"answer":  result.Answer,
				"sources": result.Sources,
				"error":   "An internal error prevented the request from completing.",
			})
			return
		}

		cache.Set(ctx, question, result)
		c.JSON(http.StatusOK, result)
	})
}
