package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"slacord-relay/models"
	"slacord-relay/services"
)

// teamErrorStatus はサービス層のエラーをHTTPステータスに対応付ける
func teamErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrTeamNotFound),
		errors.Is(err, services.ErrRoomNotFound),
		errors.Is(err, services.ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotTeamOwner):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInviteInvalid),
		errors.Is(err, services.ErrInviteInactive),
		errors.Is(err, services.ErrInviteExpired),
		errors.Is(err, services.ErrInviteExhausted),
		errors.Is(err, services.ErrAlreadyMember),
		errors.Is(err, services.ErrCannotRemoveOwner):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

// HandleCreateTeam はチーム作成（要認証）
// POST /api/teams
func HandleCreateTeam(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name        string `json:"name" binding:"required"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
			return
		}

		user := currentUser(c)
		team, err := teams.CreateTeam(req.Name, req.Description, user.ID)
		if err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"data":    team,
			"message": "チャンネルが作成されました",
		})
	}
}

// HandleGetAllTeams はチーム一覧
// GET /api/teams
func HandleGetAllTeams(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := teams.GetAllTeams()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": list, "count": len(list)})
	}
}

// HandleGetTeam はチーム詳細
// GET /api/teams/:teamId
func HandleGetTeam(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		team, err := teams.GetTeamByID(c.Param("teamId"))
		if err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": team})
	}
}

// HandleUpdateTeam はチーム更新
// PUT /api/teams/:teamId
func HandleUpdateTeam(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
			IsActive    *bool   `json:"isActive"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
			return
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}

		team, err := teams.UpdateTeam(c.Param("teamId"), updates)
		if err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": team, "message": "チームが更新されました"})
	}
}

// HandleDeleteTeam はチーム削除（Room・メッセージも連鎖削除）
// DELETE /api/teams/:teamId
func HandleDeleteTeam(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := teams.DeleteTeam(c.Param("teamId")); err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "チームが削除されました"})
	}
}

// HandleCreateRoom は Room 作成
// POST /api/teams/:teamId/rooms
func HandleCreateRoom(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name               string `json:"name" binding:"required"`
			Description        string `json:"description"`
			SlackChannelID     string `json:"slackChannelId" binding:"required"`
			SlackChannelName   string `json:"slackChannelName"`
			DiscordChannelID   string `json:"discordChannelId"`
			DiscordChannelName string `json:"discordChannelName"`
			DiscordWebhookURL  string `json:"discordWebhookUrl"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
			return
		}

		room, err := teams.CreateRoom(c.Param("teamId"), &models.Room{
			Name:               req.Name,
			Description:        req.Description,
			SlackChannelID:     req.SlackChannelID,
			SlackChannelName:   req.SlackChannelName,
			DiscordChannelID:   req.DiscordChannelID,
			DiscordChannelName: req.DiscordChannelName,
			DiscordWebhookURL:  req.DiscordWebhookURL,
		})
		if err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": room, "message": "roomが作成されました"})
	}
}

// HandleGetRoomsByTeam はチームの Room 一覧
// GET /api/teams/:teamId/rooms
func HandleGetRoomsByTeam(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rooms, err := teams.GetRoomsByTeam(c.Param("teamId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": rooms, "count": len(rooms)})
	}
}

// HandleGetRoom は Room 詳細
// GET /api/teams/rooms/:roomId
func HandleGetRoom(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, err := teams.GetRoomByID(c.Param("roomId"))
		if err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": room})
	}
}

// HandleUpdateRoom は Room 更新
// PUT /api/teams/rooms/:roomId
func HandleUpdateRoom(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
			IsActive    *bool   `json:"isActive"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
			return
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}

		room, err := teams.UpdateRoom(c.Param("roomId"), updates)
		if err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": room, "message": "roomが更新されました"})
	}
}

// HandleDeleteRoom は Room 削除
// DELETE /api/teams/rooms/:roomId
func HandleDeleteRoom(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := teams.DeleteRoom(c.Param("roomId")); err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "roomが削除されました"})
	}
}

// HandleGenerateInvite は招待リンク発行（要認証）
// POST /api/teams/:teamId/invite?expiresInDays=7&maxUses=10
func HandleGenerateInvite(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		expiresInDays, _ := strconv.Atoi(c.DefaultQuery("expiresInDays", "7"))
		maxUses, _ := strconv.Atoi(c.DefaultQuery("maxUses", "0"))

		token, inviteURL, err := teams.GenerateInviteLink(c.Param("teamId"), expiresInDays, maxUses)
		if err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"inviteToken": token, "inviteUrl": inviteURL},
			"message": "招待リンクが作成されました",
		})
	}
}

// HandleJoinByInvite は招待リンクでのチーム参加（要認証）
// POST /api/teams/join/:inviteToken
func HandleJoinByInvite(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		team, err := teams.JoinTeamByInvite(c.Param("inviteToken"), user.ID)
		if err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": team, "message": "チームに参加しました"})
	}
}

// HandleDeactivateInvite は招待リンク無効化（要認証）
// DELETE /api/teams/:teamId/invite
func HandleDeactivateInvite(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := teams.DeactivateInviteLink(c.Param("teamId")); err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "招待リンクが無効化されました"})
	}
}

// HandleGetTeamMembers はメンバー一覧（要認証）
// GET /api/teams/:teamId/members
func HandleGetTeamMembers(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := teams.GetTeamMembers(c.Param("teamId"))
		if err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": members, "count": len(members)})
	}
}

// HandleRemoveMember はメンバー削除（オーナーのみ）
// DELETE /api/teams/:teamId/members/:userId
func HandleRemoveMember(teams *services.TeamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if err := teams.RemoveMember(c.Param("teamId"), c.Param("userId"), user.ID); err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "メンバーが削除されました"})
	}
}

// HandleBackupHistory は過去メッセージの手動バックフィル（要認証）
// POST /api/teams/:teamId/backup?limit=100
func HandleBackupHistory(relay *services.RelayService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

		count, err := relay.BackupHistory(c.Param("teamId"), limit)
		if err != nil {
			c.JSON(teamErrorStatus(err), gin.H{"success": false, "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"backupCount": count},
			"message": "バックアップが完了しました",
		})
	}
}
