package handlers

import (
	"backend/models"
	"backend/repository"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetSiteWorkStages godoc
// @Summary      List work stages of a site
// @Description  Returns each stage with its most recent daily progress row
// @Tags         work-stages
// @Produce      json
// @Param        site_id  path      string  true  "Site ID"
// @Success      200      {array}   models.WorkStageResponse
// @Failure      500      {object}  models.ErrorResponse
// @Router       /api/site/{site_id}/work-stages [get]
func GetSiteWorkStages(repo repository.WorkStageRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		stages, err := repo.FindBySite(c.Param("site_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch work stages: " + err.Error()})
			return
		}
		if stages == nil {
			stages = []models.WorkStageResponse{}
		}
		c.JSON(http.StatusOK, stages)
	}
}
