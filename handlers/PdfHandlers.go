package handlers

import (
	"backend/models"
	"backend/services"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"
)

// GetProgressSummaryPDF godoc
// @Summary      Download a progress summary PDF
// @Description  Renders a one-page-per-section summary of a project's production progress
// @Tags         exports
// @Produce      application/pdf
// @Param        project_id  path      string  true  "Project ID"
// @Success      200         {file}    binary
// @Failure      500         {object}  models.ErrorResponse
// @Router       /api/project/{project_id}/progress/summary.pdf [get]
func GetProgressSummaryPDF(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("project_id")
		elements, err := svc.ListProjectProgress(projectID, "", "")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch project progress: " + err.Error()})
			return
		}

		// Per-activity rollup across the whole project.
		type rollup struct {
			name     string
			total    int
			finished int
			sum      float64
		}
		order := []string{}
		rollups := map[string]*rollup{}
		for _, el := range elements {
			for _, act := range activityDTOs(el) {
				name := act.ActivityName
				if name == "" {
					name = act.ActivityID
				}
				r, ok := rollups[name]
				if !ok {
					r = &rollup{name: name}
					rollups[name] = r
					order = append(order, name)
				}
				r.total++
				r.sum += act.Progress
				if act.Status == models.StatusFinished {
					r.finished++
				}
			}
		}

		pdf := gofpdf.New("P", "mm", "A4", "")
		pdf.SetTitle(fmt.Sprintf("Production Progress %s", projectID), false)
		pdf.AddPage()

		pdf.SetFont("Arial", "B", 16)
		pdf.Cell(0, 10, fmt.Sprintf("Production Progress Summary - Project %s", projectID))
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 10)
		pdf.Cell(0, 8, fmt.Sprintf("Generated %s - %d towers", time.Now().Format("2006-01-02 15:04"), len(elements)))
		pdf.Ln(12)

		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(70, 8, "Activity", "1", 0, "L", true, 0, "")
		pdf.CellFormat(30, 8, "Towers", "1", 0, "R", true, 0, "")
		pdf.CellFormat(30, 8, "Finished", "1", 0, "R", true, 0, "")
		pdf.CellFormat(40, 8, "Avg Progress", "1", 0, "R", true, 0, "")
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 10)
		for _, name := range order {
			r := rollups[name]
			avg := 0.0
			if r.total > 0 {
				avg = r.sum / float64(r.total)
			}
			pdf.CellFormat(70, 7, r.name, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 7, fmt.Sprintf("%d", r.total), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 7, fmt.Sprintf("%d", r.finished), "1", 0, "R", false, 0, "")
			pdf.CellFormat(40, 7, fmt.Sprintf("%.1f%%", avg), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q",
			fmt.Sprintf("progress_summary_%s.pdf", projectID)))
		c.Header("Content-Type", "application/pdf")
		if err := pdf.Output(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render PDF: " + err.Error()})
		}
	}
}
