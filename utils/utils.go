package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func ErrorResponse(c *gin.Context, message string, code int) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func SuccessResponse(c *gin.Context, message string, code int) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func secretKey() []byte {
	if s := os.Getenv("EXPORT_TOKEN_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("blueinvent")
}

// GenerateExportToken creates a short-lived token that authorizes downloading
// one project's export. Links get shared around, so they expire in 15 minutes.
func GenerateExportToken(projectID string) (string, error) {
	claims := jwt.MapClaims{
		"projectId": projectID,
		"type":      "export",
		"exp":       time.Now().Add(15 * time.Minute).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secretKey())
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// ValidateExportToken parses an export token and returns the project it grants.
func ValidateExportToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secretKey(), nil
	})
	if err != nil {
		return "", fmt.Errorf("token parsing error: %w", err)
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	if claims["type"] != "export" {
		return "", errors.New("not an export token")
	}
	projectID, _ := claims["projectId"].(string)
	if projectID == "" {
		return "", errors.New("token carries no project")
	}
	return projectID, nil
}
