package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"slacord-relay/services"
)

const accessTokenMaxAge = 7 * 24 * 60 * 60 // クッキーの有効期間（秒）

// HandleRegister は会員登録
// POST /api/auth/register
func HandleRegister(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required,min=8"`
			Username string `json:"username" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
			return
		}

		token, user, err := auth.Register(req.Email, req.Password, req.Username)
		if err != nil {
			if errors.Is(err, services.ErrEmailTaken) {
				c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "registration failed"})
			return
		}

		setAccessTokenCookie(c, token)
		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"data": gin.H{
				"accessToken": token,
				"user": gin.H{
					"id":       user.ID,
					"email":    user.Email,
					"username": user.Username,
				},
			},
			"message": "会員登録が完了しました",
		})
	}
}

// HandleLogin はログイン
// POST /api/auth/login
func HandleLogin(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
			return
		}

		token, user, err := auth.Login(req.Email, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": services.ErrInvalidCredentials.Error()})
			return
		}

		setAccessTokenCookie(c, token)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"accessToken": token,
				"user": gin.H{
					"id":       user.ID,
					"email":    user.Email,
					"username": user.Username,
				},
			},
			"message": "ログインに成功しました",
		})
	}
}

// HandleMe はログイン中のユーザー情報を返す
// GET /api/auth/me
func HandleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "認証が必要です"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"id":           user.ID,
				"email":        user.Email,
				"username":     user.Username,
				"profileImage": user.ProfileImage,
			},
		})
	}
}

func setAccessTokenCookie(c *gin.Context, token string) {
	c.SetCookie("accessToken", token, accessTokenMaxAge, "/", "", false, true)
}
