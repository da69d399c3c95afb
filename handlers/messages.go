package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"slacord-relay/services"
)

// HandleGetMessages は保持期間に応じた取得元切り替え付きのメッセージ取得
// GET /api/messages?teamId=...&before=...&limit=50&cursor=...
// before は RFC3339 形式（省略時は現在時刻）
func HandleGetMessages(teams *services.TeamService, retention *services.RetentionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID := c.Query("teamId")
		if teamID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "teamId is required"})
			return
		}

		var before time.Time
		if v := c.Query("before"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid before timestamp"})
				return
			}
			before = parsed
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		room, err := teams.GetActiveRoomByTeam(teamID)
		if err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}

		page, err := retention.GetMessages(room, before, limit, c.Query("cursor"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"messages":   page.Messages,
			"hasMore":    page.HasMore,
			"nextCursor": page.NextCursor,
		})
	}
}

// HandleSendMessage はチームの Slack チャンネルへのメッセージ送信（要認証）
// POST /api/messages {teamId, content, username?}
// 発信者名は省略時にセッションユーザーの名前になる
func HandleSendMessage(teams *services.TeamService, slack *services.SlackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			TeamID   string `json:"teamId" binding:"required"`
			Content  string `json:"content" binding:"required"`
			Username string `json:"username"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
			return
		}

		room, err := teams.GetActiveRoomByTeam(req.TeamID)
		if err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}

		username := req.Username
		if username == "" {
			if user := currentUser(c); user != nil {
				username = user.Username
			}
		}

		result, err := slack.PostMessage(room.SlackChannelID, req.Content, username)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "メッセージ送信に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"messageTs": result.MessageTs,
			"channelId": result.ChannelID,
			"timestamp": result.Timestamp.Format(time.RFC3339),
		})
	}
}

// HandleSearchMessages はアーカイブの全文検索
// GET /api/messages/search?q=検索語&limit=50
func HandleSearchMessages(messages *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "q is required"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		result, err := messages.SearchMessages(query, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": result, "count": len(result)})
	}
}

// HandleGetMessagesByChannel はチャンネル別のアーカイブ取得
// GET /api/messages/channel/:channelId?page=1&limit=50
func HandleGetMessagesByChannel(messages *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		channelID := c.Param("channelId")
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		result, err := messages.GetMessagesByChannel(channelID, page, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		totalCount, _ := messages.GetCountByChannel(channelID)
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"data":       result,
			"count":      len(result),
			"totalCount": totalCount,
		})
	}
}

// HandleGetMessagesByUser はユーザー別のアーカイブ取得
// GET /api/messages/user/:userId?page=1&limit=50
func HandleGetMessagesByUser(messages *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		result, err := messages.GetMessagesByUser(c.Param("userId"), page, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": result, "count": len(result)})
	}
}

// HandleGetMessagesByRange は日付範囲でのアーカイブ取得
// GET /api/messages/range?start=2025-01-01T00:00:00Z&end=2025-01-31T23:59:59Z&limit=100
func HandleGetMessagesByRange(messages *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start, err := time.Parse(time.RFC3339, c.Query("start"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid start timestamp"})
			return
		}
		end, err := time.Parse(time.RFC3339, c.Query("end"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid end timestamp"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

		result, err := messages.GetMessagesByDateRange(start, end, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": result, "count": len(result)})
	}
}

// HandleGetStats はアーカイブ統計
// GET /api/messages/stats
func HandleGetStats(messages *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalCount, err := messages.GetTotalCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"totalMessages": totalCount},
		})
	}
}
