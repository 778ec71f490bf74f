package routes

import (
	"net/http"

	"filerepo-extraction/internal/config"
	"filerepo-extraction/internal/queue"
	"filerepo-extraction/models"
	"filerepo-extraction/services"
	"filerepo-extraction/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// ExtractionDeps bundles the collaborators the embedding routes need.
type ExtractionDeps struct {
	Cfg      *config.Config
	Pipeline *services.IndexingPipeline
	Store    services.EmbeddingStore
	Files    services.FileService
	Embedder services.Embedder
	Searcher services.SimilaritySearcher
	Queue    *asynq.Client
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

const defaultTopK = 5

// HandleIndexFile runs the indexing pipeline for one file. With ?async=1
// the work is enqueued and the request returns immediately.
func HandleIndexFile(deps ExtractionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Param("tenantID")
		fileID := c.Param("fileID")

		if c.Query("async") == "1" {
			task, err := queue.NewIndexEmbeddingsTask(deps.Cfg, tenantID, fileID)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to create indexing task", nil)
				return
			}
			info, err := deps.Queue.Enqueue(task)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to enqueue indexing task", nil)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{
				"message": "Indexing accepted for processing",
				"file_id": fileID,
				"task_id": info.ID,
			})
			return
		}

		result, err := deps.Pipeline.IndexFile(c.Request.Context(), tenantID, fileID)
		if err != nil {
			utils.RespondWithFailure(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"file_id":         result.FileID,
			"status":          result.Status,
			"pages_processed": result.PagesProcessed,
			"pages_total":     result.PagesTotal,
			"page_failures":   result.PageFailures,
		})
	}
}

// HandleGetFileEmbeddings returns the per-page index state for a file.
func HandleGetFileEmbeddings(deps ExtractionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Param("tenantID")
		fileID := c.Param("fileID")

		// Ownership check before touching the index
		if _, err := deps.Files.GetFile(c.Request.Context(), tenantID, fileID); err != nil {
			utils.RespondWithFailure(c, err)
			return
		}

		pages, err := deps.Store.Get(c.Request.Context(), fileID)
		if err != nil {
			utils.RespondWithFailure(c, err)
			return
		}
		if pages == nil {
			pages = []models.PageSummary{}
		}

		c.JSON(http.StatusOK, gin.H{
			"file_id": fileID,
			"pages":   pages,
		})
	}
}

// HandleDeleteFileEmbeddings removes every indexed page of a file.
func HandleDeleteFileEmbeddings(deps ExtractionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileID := c.Param("fileID")

		if err := deps.Pipeline.DeleteFileEmbeddings(c.Request.Context(), fileID); err != nil {
			utils.RespondWithFailure(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"file_id": fileID,
			"deleted": true,
		})
	}
}

// HandleTenantSearch ranks pages across every file of the tenant.
func HandleTenantSearch(deps ExtractionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		runSearch(c, deps, models.ScopeTenant(c.Param("tenantID")))
	}
}

// HandleFileSearch ranks pages within a single file.
func HandleFileSearch(deps ExtractionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Param("tenantID")
		fileID := c.Param("fileID")

		if _, err := deps.Files.GetFile(c.Request.Context(), tenantID, fileID); err != nil {
			utils.RespondWithFailure(c, err)
			return
		}

		runSearch(c, deps, models.ScopeFile(fileID))
	}
}

func runSearch(c *gin.Context, deps ExtractionDeps, scope models.SearchScope) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Request must include a non-empty query", nil)
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}

	ctx := c.Request.Context()
	vec, err := deps.Embedder.Embed(ctx, req.Query)
	if err != nil {
		utils.RespondWithFailure(c, err)
		return
	}

	matches, err := deps.Searcher.Search(ctx, vec, scope, req.TopK)
	if err != nil {
		utils.RespondWithFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"matches": matches,
		"count":   len(matches),
	})
}

// RegisterExtractionRoutes mounts the embedding endpoints under /v2.
func RegisterExtractionRoutes(r *gin.Engine, deps ExtractionDeps) {
	v2 := r.Group("/v2/tenants/:tenantID/embeddings")
	{
		v2.POST("/search", HandleTenantSearch(deps))
		v2.POST("/search/:fileID", HandleFileSearch(deps))
		v2.POST("/:fileID", HandleIndexFile(deps))
		v2.GET("/:fileID", HandleGetFileEmbeddings(deps))
		v2.DELETE("/:fileID", HandleDeleteFileEmbeddings(deps))
	}
}
