package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/middleware"
	"docqa-platform/models"
	"docqa-platform/services"
	"docqa-platform/utils"

	"github.com/gin-gonic/gin"
)

// SetupPDFRoutes registers the document question-answering API under /pdf.
func SetupPDFRoutes(router gin.IRouter, cfg *config.Config, svc *services.DocumentService, limiters ...gin.HandlerFunc) {
	pdf := router.Group("/pdf")
	pdf.GET("/health", handleHealth())

	api := pdf.Group("")
	api.Use(limiters...)

	// multipart framing adds a little on top of the file itself
	api.POST("/upload", middleware.RequestSizeLimit(cfg.MaxFileSize+1<<20), handleUpload(cfg, svc))
	api.POST("/query", handleQuery(cfg, svc))
	api.POST("/query/stream", handleStreamQuery(cfg, svc))
	api.POST("/summarize", handleSummarize(cfg, svc))

	api.GET("/documents", handleListDocuments(svc))
	api.GET("/documents/:id", handleGetDocument(svc))
	api.GET("/documents/:id/text", handleGetDocumentText(svc))
	api.GET("/documents/:id/summary", handleGetDocumentSummary(svc))
	api.POST("/documents/:id/quick-summary", handleQuickSummary(cfg, svc))
	api.DELETE("/documents/:id", handleDeleteDocument(svc))
	api.DELETE("/documents/:id/sessions", handleClearDocumentSessions(svc))

	api.GET("/sessions", handleListSessions(svc))
	api.GET("/sessions/:id", handleGetSession(svc))
	api.GET("/sessions/:id/export", handleExportSession(svc))
	api.DELETE("/sessions/:id", handleDeleteSession(svc))

	api.GET("/config", handleGetConfig(svc))
}

// respondServiceError maps service errors onto the error envelope.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDocumentNotFound):
		utils.RespondWithNotFound(c, "document_not_found", err.Error())
	case errors.Is(err, services.ErrSessionNotFound):
		utils.RespondWithNotFound(c, "session_not_found", err.Error())
	case errors.Is(err, services.ErrEmptyDocument):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, "empty_document", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidFile):
		utils.RespondWithError(c, http.StatusBadRequest, "invalid_file", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidChunking):
		utils.RespondWithError(c, http.StatusBadRequest, "invalid_chunking", err.Error(), nil)
	default:
		logger.Error("Request failed", "path", c.FullPath(), "error", err)
		utils.RespondWithInternalError(c, "Internal server error", gin.H{"error": err.Error()})
	}
}

// withDeadline bounds a request; a zero duration adds no deadline.
func withDeadline(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), d)
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "pdf",
		})
	}
}

// handleUpload processes PDF file uploads
func handleUpload(cfg *config.Config, svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_upload",
				"Upload must be multipart/form-data within the size limit",
				gin.H{"max_size_mb": cfg.MaxFileSize / (1024 * 1024)})
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file uploaded", nil)
			return
		}
		defer file.Close()

		ct := header.Header.Get("Content-Type")
		if ct != "" && ct != "application/pdf" && ct != "application/octet-stream" {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type", "Only PDF files are allowed", gin.H{"content_type": ct})
			return
		}
		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large", "File size exceeds maximum limit",
				gin.H{"max_size_mb": cfg.MaxFileSize / (1024 * 1024)})
			return
		}

		var overrides models.ChunkingOverrides
		if err := c.ShouldBind(&overrides); err != nil {
			utils.RespondWithValidationError(c, err)
			return
		}

		ctx, cancel := withDeadline(c, cfg.UploadTimeout)
		defer cancel()

		resp, err := svc.UploadPDF(ctx, header.Filename, file, overrides)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleQuery(cfg *config.Config, svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithValidationError(c, err)
			return
		}

		ctx, cancel := withDeadline(c, cfg.QueryTimeout)
		defer cancel()

		resp, err := svc.Query(ctx, req)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// handleStreamQuery writes each event as an SSE data frame and ends with a
// done event. A client disconnect cancels the request context, which stops
// the answer.
func handleStreamQuery(cfg *config.Config, svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithValidationError(c, err)
			return
		}

		ctx, cancel := withDeadline(c, cfg.QueryTimeout)
		defer cancel()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		c.Status(http.StatusOK)

		w := c.Writer
		for event := range svc.StreamQuery(ctx, req) {
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error("Failed to encode stream event", "error", err)
				fmt.Fprintf(w, "event: error\ndata: %s\n\n", mustErrorJSON(err))
				w.Flush()
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			w.Flush()
		}

		if ctx.Err() == nil {
			io.WriteString(w, "event: done\ndata: {}\n\n")
			w.Flush()
		}
	}
}

func mustErrorJSON(err error) []byte {
	data, _ := json.Marshal(gin.H{"error": err.Error()})
	return data
}

func handleSummarize(cfg *config.Config, svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SummarizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithValidationError(c, err)
			return
		}

		ctx, cancel := withDeadline(c, cfg.SummarizeTimeout)
		defer cancel()

		resp, err := svc.Summarize(ctx, req.DocumentID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleQuickSummary(cfg *config.Config, svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := withDeadline(c, cfg.QueryTimeout)
		defer cancel()

		resp, err := svc.QuickSummarize(ctx, c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleListDocuments(svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		docs := svc.ListDocuments()
		c.JSON(http.StatusOK, gin.H{"documents": docs, "total": len(docs)})
	}
}

func handleGetDocument(svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := svc.GetDocument(c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.DocumentInfo{
			ID:         doc.ID,
			Name:       doc.OriginalName,
			Pages:      doc.TotalPages,
			Chunks:     doc.TotalChunks(),
			UploadedAt: doc.UploadedAt,
			HasSummary: doc.Summary != "",
		})
	}
}

func handleGetDocumentText(svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		text, err := svc.GetDocumentText(c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"text": text})
	}
}

func handleGetDocumentSummary(svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		summary, err := svc.GetDocumentSummary(id)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"document_id": id, "summary": summary})
	}
}

func handleDeleteDocument(svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		cleared, err := svc.DeleteDocument(c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":          true,
			"message":          "Document deleted",
			"sessions_cleared": cleared,
		})
	}
}

func handleClearDocumentSessions(svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		cleared := svc.ClearDocumentSessions(c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"success": true, "cleared": cleared})
	}
}

func handleListSessions(svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions := svc.ListSessions()
		c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": len(sessions)})
	}
}

func handleGetSession(svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := svc.GetSession(c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// handleExportSession downloads a conversation as xlsx (default) or json.
func handleExportSession(svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := svc.GetSession(c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}

		format := strings.ToLower(c.DefaultQuery("format", "xlsx"))
		filename := fmt.Sprintf("conversation_%s_%s", session.ID, time.Now().UTC().Format("20060102_150405"))

		switch format {
		case "json":
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.json", filename))
			c.JSON(http.StatusOK, services.NewSessionExport(session))
		case "xlsx", "excel":
			data, err := services.ExportSessionExcel(session)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to export conversation", gin.H{"error": err.Error()})
				return
			}
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", filename))
			c.Data(http.StatusOK, services.ExcelContentType, data)
		default:
			utils.RespondWithBadRequest(c, "Unsupported export format", gin.H{"format": format, "supported": []string{"xlsx", "json"}})
		}
	}
}

func handleDeleteSession(svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteSession(c.Param("id")); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Session deleted"})
	}
}

func handleGetConfig(svc *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Config())
	}
}
