package handlers

import (
	"backend/repository"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
)

// addLabel adds text to an image at the specified position
func addLabel(img *image.RGBA, x, y int, label string) {
	col := color.RGBA{0, 0, 0, 255}

	point := fixed.Point26_6{
		X: fixed.Int26_6(x * 64),
		Y: fixed.Int26_6(y * 64),
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: inconsolata.Regular8x16,
		Dot:  point,
	}
	d.DrawString(label)
}

// addLabelBold adds bold text for field labels
func addLabelBold(img *image.RGBA, x, y int, label string) {
	col := color.RGBA{30, 30, 30, 255}

	point := fixed.Point26_6{
		X: fixed.Int26_6(x * 64),
		Y: fixed.Int26_6(y * 64),
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: inconsolata.Bold8x16,
		Dot:  point,
	}
	d.DrawString(label)
}

func truncateLabel(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

func metadataLabel(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return "N/A"
	}
	if s, ok := metadata[key].(string); ok && s != "" {
		return s
	}
	return "N/A"
}

// GetTowerQRCode godoc
// @Summary      Generate a tower QR label
// @Description  Returns a JPEG combining a QR code with the tower's identification, for printed field labels
// @Tags         towers
// @Produce      image/jpeg
// @Param        tower_id  path      string  true  "Map element ID"
// @Success      200       {file}    file  "JPEG image"
// @Failure      404       {object}  models.ErrorResponse
// @Failure      500       {object}  models.ErrorResponse
// @Router       /api/tower/{tower_id}/qrcode [get]
func GetTowerQRCode(repo repository.MapElementRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		element, err := repo.FindByID(c.Param("tower_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tower: " + err.Error()})
			return
		}
		if element == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tower not found"})
			return
		}

		qrData := struct {
			ID        string `json:"id"`
			ObjectID  string `json:"objectId"`
			ProjectID string `json:"projectId"`
		}{
			ID:        element.ID,
			ObjectID:  element.ExternalID,
			ProjectID: element.ProjectID,
		}
		jsonData, err := json.Marshal(qrData)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to marshal tower data"})
			return
		}

		qr, err := qrcode.New(string(jsonData), qrcode.Medium)
		if err != nil {
			c.String(http.StatusInternalServerError, "QR code generation failed")
			return
		}

		qrImg := qr.Image(512)

		qrSize := qrImg.Bounds().Dy()
		padding := 30
		lineHeight := 28
		textAreaHeight := 4*lineHeight + padding
		totalHeight := qrSize + padding + textAreaHeight

		combinedImg := image.NewRGBA(image.Rect(0, 0, qrSize, totalHeight))
		draw.Draw(combinedImg, combinedImg.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

		qrRect := image.Rect(0, 0, qrSize, qrSize)
		draw.Draw(combinedImg, qrRect, qrImg, image.Point{}, draw.Src)

		// Separator line between QR code and text
		separatorY := qrSize + padding/2
		for x := 0; x < qrSize; x++ {
			combinedImg.Set(x, separatorY, color.RGBA{200, 200, 200, 255})
		}

		startY := qrSize + padding + lineHeight
		xPos := 20

		addLabelBold(combinedImg, xPos, startY, "Tower:")
		addLabel(combinedImg, xPos+120, startY, truncateLabel(element.Name, 30))

		addLabelBold(combinedImg, xPos, startY+lineHeight, "Type:")
		addLabel(combinedImg, xPos+120, startY+lineHeight, truncateLabel(metadataLabel(element.Metadata, "towerType"), 25))

		addLabelBold(combinedImg, xPos, startY+2*lineHeight, "Stretch:")
		addLabel(combinedImg, xPos+120, startY+2*lineHeight, truncateLabel(metadataLabel(element.Metadata, "trecho"), 25))

		addLabelBold(combinedImg, xPos, startY+3*lineHeight, "Sequence:")
		addLabel(combinedImg, xPos+120, startY+3*lineHeight, fmt.Sprintf("%d", element.Sequence))

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, combinedImg, nil); err != nil {
			c.String(http.StatusInternalServerError, "JPEG encoding failed")
			return
		}

		c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
	}
}
