package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"slacord-relay/models"
)

func newTestRetention(db *gorm.DB) *RetentionService {
	return NewRetentionService(db, newTestSlackService(), DefaultRetentionWindow)
}

// seedArchivedMessages は before より古いアーカイブ行を count 件作る（新しい順に並ぶ）
func seedArchivedMessages(t *testing.T, db *gorm.DB, room *models.Room, base time.Time, count int) {
	for i := 0; i < count; i++ {
		sentAt := base.Add(-time.Duration(i+1) * time.Hour)
		backedUp := sentAt.Add(time.Minute)
		msg := models.Message{
			ID:               fmt.Sprintf("msg%d", i),
			TeamID:           room.TeamID,
			RoomID:           room.ID,
			SlackMessageID:   TimeToSlackTs(sentAt),
			SlackChannelID:   room.SlackChannelID,
			Username:         "田中太郎",
			Content:          fmt.Sprintf("archived message %d", i),
			Type:             models.MessageTypeNormal,
			DiscordMessageID: fmt.Sprintf("discord-%d", i),
			SentAt:           sentAt,
			BackedUpAt:       &backedUp,
		}
		if err := db.Create(&msg).Error; err != nil {
			t.Fatalf("fail to seed message: %v", err)
		}
	}
}

func TestGetMessagesArchived(t *testing.T) {
	db := setupTestDB(t)
	room := createTestRoom(t, db)
	retention := newTestRetention(db)

	// 保持期間より古い範囲の取得はアーカイブDBのみを使う
	// （Slack のモックを一切用意していないことがその検証になる）
	before := time.Now().AddDate(0, 0, -100)
	seedArchivedMessages(t, db, &room, before, 3)

	page, err := retention.GetMessages(&room, before, 2, "")
	assert.NoError(t, err)
	assert.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)

	// 新しい順・source は discord・ID は Discord メッセージID
	assert.Equal(t, "archived message 0", page.Messages[0].Content)
	assert.Equal(t, "archived message 1", page.Messages[1].Content)
	assert.Equal(t, MessageSourceDiscord, page.Messages[0].Source)
	assert.Equal(t, "discord-0", page.Messages[0].MessageID)
	assert.True(t, page.Messages[0].Timestamp.After(page.Messages[1].Timestamp))

	// カーソルで次ページへ
	assert.Equal(t, "discord-1", page.NextCursor)
	next, err := retention.GetMessages(&room, before, 2, page.NextCursor)
	assert.NoError(t, err)
	assert.Len(t, next.Messages, 1)
	assert.Equal(t, "archived message 2", next.Messages[0].Content)
	assert.False(t, next.HasMore)
}

func TestGetMessagesArchivedPendingRow(t *testing.T) {
	db := setupTestDB(t)
	room := createTestRoom(t, db)
	retention := newTestRetention(db)

	// 転送に失敗して pending のまま残った行も読み出し対象になる
	before := time.Now().AddDate(0, 0, -100)
	sentAt := before.Add(-time.Hour)
	db.Create(&models.Message{
		ID:             "pending1",
		TeamID:         room.TeamID,
		RoomID:         room.ID,
		SlackMessageID: "1600000000.000100",
		SlackChannelID: room.SlackChannelID,
		Content:        "pending message",
		SentAt:         sentAt,
	})

	page, err := retention.GetMessages(&room, before, 10, "")
	assert.NoError(t, err)
	assert.Len(t, page.Messages, 1)

	// Discord ID がないので Slack の ts がメッセージIDになる
	assert.Equal(t, "1600000000.000100", page.Messages[0].MessageID)
	assert.Equal(t, MessageSourceDiscord, page.Messages[0].Source)
}

func TestGetMessagesLive(t *testing.T) {
	db := setupTestDB(t)
	room := createTestRoom(t, db)
	retention := newTestRetention(db)

	defer gock.Off()
	gock.New("https://slack.com").
		Post("/api/conversations.history").
		Reply(200).
		JSON(map[string]interface{}{
			"ok": true,
			"messages": []map[string]interface{}{
				{"type": "message", "user": "U12345", "text": "recent message", "ts": "1704067200.000100"},
			},
			"has_more": false,
		})

	// before 省略（ゼロ値）は現在時刻扱い = 保持期間内なので Slack API
	page, err := retention.GetMessages(&room, time.Time{}, 10, "")
	assert.NoError(t, err)
	assert.Len(t, page.Messages, 1)
	assert.Equal(t, "recent message", page.Messages[0].Content)
	assert.Equal(t, MessageSourceSlack, page.Messages[0].Source)
	assert.Equal(t, "1704067200.000100", page.Messages[0].MessageID)
	assert.False(t, page.HasMore)
	assert.True(t, gock.IsDone(), "すべてのモックが使用されていません")
}

func TestGetMessagesLiveSlackError(t *testing.T) {
	db := setupTestDB(t)
	room := createTestRoom(t, db)
	retention := newTestRetention(db)

	defer gock.Off()
	gock.New("https://slack.com").
		Post("/api/conversations.history").
		Reply(200).
		JSON(map[string]interface{}{"ok": false, "error": "channel_not_found"})

	// Slack 側のエラーは空ページになる（エラーにしない）
	page, err := retention.GetMessages(&room, time.Now(), 10, "")
	assert.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.False(t, page.HasMore)
}

func TestGetMessagesLimitClamp(t *testing.T) {
	db := setupTestDB(t)
	room := createTestRoom(t, db)
	retention := newTestRetention(db)

	before := time.Now().AddDate(0, 0, -100)
	seedArchivedMessages(t, db, &room, before, 3)

	// limit 0 はデフォルト 50 になる（3件全部返る）
	page, err := retention.GetMessages(&room, before, 0, "")
	assert.NoError(t, err)
	assert.Len(t, page.Messages, 3)
	assert.False(t, page.HasMore)
}
