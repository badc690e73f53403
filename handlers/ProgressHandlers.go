package handlers

import (
	"backend/models"
	"backend/services"
	"database/sql"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UpdateProgress godoc
// @Summary      Update production progress
// @Description  Records a status/percent change for one element-activity pair, creating the record when none exists
// @Tags         production-progress
// @Accept       json
// @Produce      json
// @Param        request  body      models.UpdateProgressRequest  true  "Progress update"
// @Success      200      {object}  models.ProductionProgress
// @Failure      400      {object}  models.ErrorResponse
// @Failure      500      {object}  models.ErrorResponse
// @Router       /api/production/progress [post]
func UpdateProgress(svc *services.ProgressService, db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UpdateProgressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}

		progress, err := svc.UpdateProgress(req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		logProductionEvent(db, c, "progress_update",
			fmt.Sprintf("element %s activity %s -> %s %.1f%%", req.ElementID, req.ActivityID, req.Status, req.Progress),
			progress.ProjectID)
		c.JSON(http.StatusOK, progress)
	}
}

// UpdateProgressBatch godoc
// @Summary      Update production progress in batch
// @Description  Applies many progress updates at once, skipping no-op rows
// @Tags         production-progress
// @Accept       json
// @Produce      json
// @Param        request  body      []models.UpdateProgressRequest  true  "Progress updates"
// @Success      200      {object}  object
// @Failure      400      {object}  models.ErrorResponse
// @Failure      500      {object}  models.ErrorResponse
// @Router       /api/production/progress/batch [post]
func UpdateProgressBatch(svc *services.ProgressService, db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var reqs []models.UpdateProgressRequest
		if err := c.ShouldBindJSON(&reqs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}

		updated, skipped, err := svc.UpdateProgressBatch(reqs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		logProductionEvent(db, c, "progress_batch_update",
			fmt.Sprintf("%d updated, %d skipped", updated, skipped), "")
		c.JSON(http.StatusOK, gin.H{"updated": updated, "skipped": skipped})
	}
}

// ApproveProgressLog godoc
// @Summary      Approve a progress history entry
// @Description  Marks the history entry matching the exact stored timestamp as approved
// @Tags         production-progress
// @Accept       json
// @Produce      json
// @Param        progress_id  path      string                   true  "Progress record ID"
// @Param        request      body      models.ApproveLogRequest true  "Approval"
// @Success      200          {object}  models.ProductionProgress
// @Failure      400          {object}  models.ErrorResponse
// @Failure      404          {object}  models.ErrorResponse
// @Router       /api/production/progress/{progress_id}/approve [post]
func ApproveProgressLog(svc *services.ProgressService, db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		progressID := c.Param("progress_id")
		var req models.ApproveLogRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}

		progress, err := svc.ApproveLog(progressID, req)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		logProductionEvent(db, c, "progress_log_approved",
			fmt.Sprintf("progress %s entry %s approved by %s", progressID, req.LogTimestamp, req.ApprovedBy),
			progress.ProjectID)
		c.JSON(http.StatusOK, progress)
	}
}

// RecordDailyProduction godoc
// @Summary      Record daily production metrics
// @Description  Upserts one day's recorded metrics on a progress record
// @Tags         production-progress
// @Accept       json
// @Produce      json
// @Param        progress_id  path      string                        true  "Progress record ID"
// @Param        request      body      models.DailyProductionRequest true  "Daily metrics"
// @Success      200          {object}  models.ProductionProgress
// @Failure      400          {object}  models.ErrorResponse
// @Failure      404          {object}  models.ErrorResponse
// @Router       /api/production/progress/{progress_id}/daily [post]
func RecordDailyProduction(svc *services.ProgressService, db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		progressID := c.Param("progress_id")
		var req models.DailyProductionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}

		progress, err := svc.RecordDaily(progressID, req)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		logProductionEvent(db, c, "daily_production_recorded",
			fmt.Sprintf("progress %s date %s", progressID, req.Date), progress.ProjectID)
		c.JSON(http.StatusOK, progress)
	}
}

// GetProjectProgress godoc
// @Summary      List project progress
// @Description  Returns the enriched tower list of a project with normalized metadata and per-activity status
// @Tags         production-progress
// @Produce      json
// @Param        project_id  path      string  true   "Project ID, or 'all'"
// @Param        company_id  query     string  false  "Company filter"
// @Param        site_id     query     string  false  "Site filter, 'none' selects towers without a site"
// @Success      200         {array}   object
// @Failure      500         {object}  models.ErrorResponse
// @Router       /api/project/{project_id}/progress [get]
func GetProjectProgress(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := svc.ListProjectProgress(
			c.Param("project_id"),
			c.Query("company_id"),
			c.Query("site_id"),
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch project progress: " + err.Error()})
			return
		}
		if results == nil {
			results = []models.ElementProgressResponse{}
		}
		c.JSON(http.StatusOK, results)
	}
}

// GetElementProgress godoc
// @Summary      Get element progress
// @Description  Returns the per-activity status of one element
// @Tags         production-progress
// @Produce      json
// @Param        element_id  path      string  true  "Element ID"
// @Success      200         {array}   models.ActivityStatusDTO
// @Failure      500         {object}  models.ErrorResponse
// @Router       /api/element/{element_id}/progress [get]
func GetElementProgress(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		dtos, err := svc.GetElementProgress(c.Param("element_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch element progress: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, dtos)
	}
}

// GetElementLogs godoc
// @Summary      Get element progress logs
// @Description  Returns the flattened history of one element, newest first
// @Tags         production-progress
// @Produce      json
// @Param        element_id  path      string  true  "Element ID"
// @Success      200         {array}   models.ProductionLogDTO
// @Failure      500         {object}  models.ErrorResponse
// @Router       /api/element/{element_id}/logs [get]
func GetElementLogs(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := svc.GetLogsByElement(c.Param("element_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch element logs: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}

// GetPendingLogs godoc
// @Summary      List pending approval logs
// @Description  Returns the newest unapproved history entry of every record awaiting approval
// @Tags         production-progress
// @Produce      json
// @Param        company_id  query     string  false  "Company filter"
// @Success      200         {array}   models.ProductionLogDTO
// @Failure      500         {object}  models.ErrorResponse
// @Router       /api/production/pending-logs [get]
func GetPendingLogs(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := svc.GetPendingLogs(c.Query("company_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch pending logs: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}

// SyncProjectActivity godoc
// @Summary      Force a work-stage sync
// @Description  Recomputes the stage aggregates for one project/activity pair
// @Tags         work-stages
// @Produce      json
// @Param        project_id   path      string  true  "Project ID"
// @Param        activity_id  path      string  true  "Activity ID"
// @Success      200          {object}  models.MessageResponse
// @Router       /api/production/sync/{project_id}/{activity_id} [post]
func SyncProjectActivity(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("project_id")
		activityID := c.Param("activity_id")
		if err := svc.SyncProjectActivity(projectID, activityID, "manual"); err != nil {
			log.Printf("manual stage sync failed: %v", err)
		}
		c.JSON(http.StatusOK, gin.H{"message": "sync triggered"})
	}
}

// logProductionEvent writes an audit row, attributing it to the caller's
// session when one is present. Audit failures are logged only.
func logProductionEvent(db *sql.DB, c *gin.Context, eventName, description, projectID string) {
	if db == nil {
		return
	}
	userName := "anonymous"
	hostName := ""
	if sessionID := c.GetHeader("Authorization"); sessionID != "" {
		if session, name, err := GetSessionDetails(db, sessionID); err == nil {
			userName = name
			hostName = session.HostName
		}
	}
	err := SaveActivityLog(db, userName, hostName, "production", c.ClientIP(), description, eventName, projectID)
	if err != nil {
		log.Printf("Failed to save activity log: %v", err)
	}
}
