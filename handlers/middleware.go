package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"slacord-relay/models"
	"slacord-relay/services"
)

// AuthMiddleware は JWT 認証ミドルウェア
// Authorization Bearer ヘッダーまたは accessToken クッキーからトークンを取り出す
func AuthMiddleware(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "認証が必要です"})
			c.Abort()
			return
		}

		user, err := auth.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "無効なトークンです"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	if cookie, err := c.Cookie("accessToken"); err == nil {
		return cookie
	}
	return ""
}

// currentUser はミドルウェアが保存したユーザーを取り出す
func currentUser(c *gin.Context) *models.User {
	v, exists := c.Get("user")
	if !exists {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
