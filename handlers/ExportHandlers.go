package handlers

import (
	"backend/models"
	"backend/services"
	"backend/utils"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fixed columns of the progress export sheet. Activity columns follow.
var exportBaseColumns = []string{"objectId", "name", "sequence", "towerType", "trecho"}

// activityDTOs pulls the typed activity list back out of an enriched element map.
func activityDTOs(el models.ElementProgressResponse) []models.ActivityStatusDTO {
	if acts, ok := el["activities"].([]models.ActivityStatusDTO); ok {
		return acts
	}
	return nil
}

// RequestProgressExport godoc
// @Summary      Request a progress export link
// @Description  Issues a short-lived signed download link for a project's progress spreadsheet
// @Tags         exports
// @Produce      json
// @Param        project_id  path      string  true  "Project ID"
// @Success      200         {object}  object
// @Router       /api/project/{project_id}/progress/export-link [post]
func RequestProgressExport() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("project_id")
		token, err := utils.GenerateExportToken(projectID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign export link: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"url":       fmt.Sprintf("/api/project/%s/progress/export?token=%s", projectID, token),
			"expiresIn": int((15 * time.Minute).Seconds()),
		})
	}
}

// ExportProjectProgress godoc
// @Summary      Download the progress spreadsheet
// @Description  Streams an xlsx with one row per tower and one column per activity, gated by a signed token
// @Tags         exports
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        project_id  path      string  true  "Project ID"
// @Param        token       query     string  true  "Signed export token"
// @Success      200         {file}    binary
// @Failure      401         {object}  models.ErrorResponse
// @Failure      500         {object}  models.ErrorResponse
// @Router       /api/project/{project_id}/progress/export [get]
func ExportProjectProgress(svc *services.ProgressService) gin.HandlerFunc {
	titleCaser := cases.Title(language.BrazilianPortuguese)

	return func(c *gin.Context) {
		projectID := c.Param("project_id")
		grantedProject, err := utils.ValidateExportToken(c.Query("token"))
		if err != nil || grantedProject != projectID {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired export token"})
			return
		}

		elements, err := svc.ListProjectProgress(projectID, "", "")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch project progress: " + err.Error()})
			return
		}

		// Collect the distinct activity names across the project so every row
		// gets the same column set.
		activityNames := []string{}
		seen := map[string]bool{}
		for _, el := range elements {
			for _, act := range activityDTOs(el) {
				name := act.ActivityName
				if name == "" {
					name = act.ActivityID
				}
				if !seen[name] {
					seen[name] = true
					activityNames = append(activityNames, name)
				}
			}
		}

		f := excelize.NewFile()
		defer f.Close()
		sheet := "Progress"
		f.SetSheetName("Sheet1", sheet)

		col := 1
		for _, header := range exportBaseColumns {
			cell, _ := excelize.CoordinatesToCellName(col, 1)
			f.SetCellValue(sheet, cell, titleCaser.String(header))
			col++
		}
		for _, name := range activityNames {
			cell, _ := excelize.CoordinatesToCellName(col, 1)
			f.SetCellValue(sheet, cell, titleCaser.String(name))
			col++
		}

		for row, el := range elements {
			col = 1
			for _, field := range exportBaseColumns {
				cell, _ := excelize.CoordinatesToCellName(col, row+2)
				if v, ok := el[field]; ok {
					f.SetCellValue(sheet, cell, v)
				}
				col++
			}
			progressByName := map[string]float64{}
			for _, act := range activityDTOs(el) {
				name := act.ActivityName
				if name == "" {
					name = act.ActivityID
				}
				progressByName[name] = act.Progress
			}
			for _, name := range activityNames {
				cell, _ := excelize.CoordinatesToCellName(col, row+2)
				if pct, ok := progressByName[name]; ok {
					f.SetCellValue(sheet, cell, pct/100)
					style, _ := f.NewStyle(&excelize.Style{NumFmt: 10})
					f.SetCellStyle(sheet, cell, cell, style)
				}
				col++
			}
		}

		filename := fmt.Sprintf("progress_%s_%s.xlsx", projectID, time.Now().Format("20060102"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write spreadsheet: " + err.Error()})
		}
	}
}
