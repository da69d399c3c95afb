package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"slacord-relay/config"
	"slacord-relay/models"
	"slacord-relay/services"
)

func newMessagesRouter(db *gorm.DB) (*gin.Engine, string) {
	gin.SetMode(gin.TestMode)

	slack := services.NewSlackService(&config.Configuration{SlackBotToken: "test-token"})
	discord := services.NewDiscordService(&config.Configuration{
		DiscordBotToken: "test-bot-token",
		DiscordGuildID:  "G12345",
	})
	auth := services.NewAuthService(db, "test-secret")
	teams := services.NewTeamService(db, slack, discord, "http://localhost:3000")
	messages := services.NewMessageService(db)
	retention := services.NewRetentionService(db, slack, services.DefaultRetentionWindow)

	token, _, _ := auth.Register("tanaka@example.com", "password123", "田中太郎")

	r := gin.New()
	group := r.Group("/api/messages", AuthMiddleware(auth))
	{
		group.GET("", HandleGetMessages(teams, retention))
		group.POST("", HandleSendMessage(teams, slack))
		group.GET("/search", HandleSearchMessages(messages))
		group.GET("/stats", HandleGetStats(messages))
	}
	return r, token
}

func authedRequest(method, path string, body []byte, token string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func seedTeamWithRoom(t *testing.T, db *gorm.DB) models.Room {
	team := models.Team{ID: "team1", Name: "開発チーム", OwnerID: "owner1", IsActive: true}
	if err := db.Create(&team).Error; err != nil {
		t.Fatalf("fail to create test team: %v", err)
	}
	return createTestRoom(t, db)
}

func TestHandleGetMessagesArchived(t *testing.T) {
	db := setupTestDB(t)
	room := seedTeamWithRoom(t, db)
	r, token := newMessagesRouter(db)

	// 保持期間外の行を用意
	before := time.Now().AddDate(0, 0, -100)
	for i := 0; i < 3; i++ {
		sentAt := before.Add(-time.Duration(i+1) * time.Hour)
		db.Create(&models.Message{
			ID:               fmt.Sprintf("old%d", i),
			TeamID:           room.TeamID,
			RoomID:           room.ID,
			SlackMessageID:   fmt.Sprintf("150000000%d.000100", i),
			SlackChannelID:   room.SlackChannelID,
			Username:         "田中太郎",
			Content:          fmt.Sprintf("old message %d", i),
			DiscordMessageID: fmt.Sprintf("d%d", i),
			SentAt:           sentAt,
		})
	}

	url := "/api/messages?teamId=team1&limit=2&before=" + before.Format(time.RFC3339)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest("GET", url, nil, token))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success    bool                       `json:"success"`
		Messages   []services.TimelineMessage `json:"messages"`
		HasMore    bool                       `json:"hasMore"`
		NextCursor string                     `json:"nextCursor"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.True(t, resp.Success)
	assert.Len(t, resp.Messages, 2)
	assert.True(t, resp.HasMore)
	assert.Equal(t, services.MessageSourceDiscord, resp.Messages[0].Source)
	assert.Equal(t, "old message 0", resp.Messages[0].Content)
	assert.Equal(t, "d1", resp.NextCursor)
}

func TestHandleGetMessagesValidation(t *testing.T) {
	db := setupTestDB(t)
	r, token := newMessagesRouter(db)

	// teamId なしは 400
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest("GET", "/api/messages", nil, token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// before の形式が不正は 400
	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest("GET", "/api/messages?teamId=team1&before=yesterday", nil, token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 存在しないチームは 404
	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest("GET", "/api/messages?teamId=missing", nil, token))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 未認証は 401
	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/messages?teamId=team1", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleSendMessage(t *testing.T) {
	db := setupTestDB(t)
	seedTeamWithRoom(t, db)
	r, token := newMessagesRouter(db)

	defer gock.Off()
	gock.New("https://slack.com").
		Post("/api/chat.postMessage").
		Reply(200).
		JSON(map[string]interface{}{
			"ok":      true,
			"channel": "C12345",
			"ts":      "1704067200.000100",
		})

	// username 省略時はセッションユーザーの名前で送信される
	body := []byte(`{"teamId": "team1", "content": "webからの送信"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest("POST", "/api/messages", body, token))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "1704067200.000100", resp["messageTs"])
	assert.Equal(t, "C12345", resp["channelId"])
	assert.True(t, gock.IsDone(), "すべてのモックが使用されていません")
}

func TestHandleSendMessageSlackDown(t *testing.T) {
	db := setupTestDB(t)
	seedTeamWithRoom(t, db)
	r, token := newMessagesRouter(db)

	defer gock.Off()
	gock.New("https://slack.com").
		Post("/api/chat.postMessage").
		Reply(200).
		JSON(map[string]interface{}{"ok": false, "error": "channel_not_found"})

	body := []byte(`{"teamId": "team1", "content": "送信できない"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest("POST", "/api/messages", body, token))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleSearchMessages(t *testing.T) {
	db := setupTestDB(t)
	r, token := newMessagesRouter(db)

	db.Create(&models.Message{
		ID:             "m1",
		SlackMessageID: "1.1",
		SlackChannelID: "C1",
		Content:        "リリースの確認",
		SentAt:         time.Now(),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest("GET", "/api/messages/search?q="+"%E3%83%AA%E3%83%AA%E3%83%BC%E3%82%B9", nil, token))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, float64(1), resp["count"])

	// q なしは 400
	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest("GET", "/api/messages/search", nil, token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetStats(t *testing.T) {
	db := setupTestDB(t)
	r, token := newMessagesRouter(db)

	db.Create(&models.Message{ID: "m1", SlackMessageID: "1.1", SentAt: time.Now()})
	db.Create(&models.Message{ID: "m2", SlackMessageID: "1.2", SentAt: time.Now()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest("GET", "/api/messages/stats", nil, token))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["totalMessages"])
}
