package handlers

import (
	"backend/models"
	"backend/repository"
	"backend/services"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ImportTowers godoc
// @Summary      Import towers into a project
// @Description  Fans the payload out to the production, construction and map tables. The batch fails as a whole if any branch fails.
// @Tags         towers
// @Accept       json
// @Produce      json
// @Param        project_id  path      string                    true  "Project ID"
// @Param        request     body      models.TowerImportRequest true  "Import payload"
// @Success      200         {object}  models.ImportResults
// @Failure      400         {object}  models.ErrorResponse
// @Failure      500         {object}  models.ErrorResponse
// @Router       /api/project/{project_id}/towers/import [post]
func ImportTowers(svc *services.TowerImportService, db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("project_id")
		var req models.TowerImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}

		results, err := svc.ProcessImport(projectID, req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "results": results})
			return
		}

		logProductionEvent(db, c, "towers_imported",
			fmt.Sprintf("%d/%d towers imported", results.Imported, results.Total), projectID)
		c.JSON(http.StatusOK, results)
	}
}

// ImportConstructionData godoc
// @Summary      Import construction technical data
// @Description  Upserts the construction rows of a project and syncs the figures onto the map skeleton
// @Tags         towers
// @Accept       json
// @Produce      json
// @Param        project_id  path      string                           true  "Project ID"
// @Param        request     body      models.ConstructionImportRequest true  "Import payload"
// @Success      200         {object}  models.ImportResults
// @Failure      400         {object}  models.ErrorResponse
// @Failure      500         {object}  models.ErrorResponse
// @Router       /api/project/{project_id}/construction/import [post]
func ImportConstructionData(svc *services.TowerConstructionService, db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("project_id")
		var req models.ConstructionImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}

		results, err := svc.ImportProjectData(projectID, req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		logProductionEvent(db, c, "construction_data_imported",
			fmt.Sprintf("%d/%d construction rows imported", results.Imported, results.Total), projectID)
		c.JSON(http.StatusOK, results)
	}
}

// GetProjectTowers godoc
// @Summary      List project towers
// @Description  Returns the map skeleton rows of a project in sequence order
// @Tags         towers
// @Produce      json
// @Param        project_id  path      string  true  "Project ID"
// @Success      200         {array}   models.MapElement
// @Failure      500         {object}  models.ErrorResponse
// @Router       /api/project/{project_id}/towers [get]
func GetProjectTowers(repo repository.MapElementRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		towers, err := repo.FindByProject(c.Param("project_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch towers: " + err.Error()})
			return
		}
		if towers == nil {
			towers = []models.MapElement{}
		}
		c.JSON(http.StatusOK, towers)
	}
}

// GetProjectProductionTowers godoc
// @Summary      List production-context tower rows
// @Tags         towers
// @Produce      json
// @Param        project_id  path      string  true  "Project ID"
// @Success      200         {array}   models.TowerProduction
// @Failure      500         {object}  models.ErrorResponse
// @Router       /api/project/{project_id}/towers/production [get]
func GetProjectProductionTowers(repo repository.TowerProductionRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := repo.FindByProject(c.Param("project_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch production towers: " + err.Error()})
			return
		}
		if rows == nil {
			rows = []models.TowerProduction{}
		}
		c.JSON(http.StatusOK, rows)
	}
}

// GetProjectConstructionTowers godoc
// @Summary      List construction-context tower rows
// @Tags         towers
// @Produce      json
// @Param        project_id  path      string  true  "Project ID"
// @Success      200         {array}   models.TowerConstruction
// @Failure      500         {object}  models.ErrorResponse
// @Router       /api/project/{project_id}/towers/construction [get]
func GetProjectConstructionTowers(repo repository.TowerConstructionRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := repo.FindByProject(c.Param("project_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch construction towers: " + err.Error()})
			return
		}
		if rows == nil {
			rows = []models.TowerConstruction{}
		}
		c.JSON(http.StatusOK, rows)
	}
}
