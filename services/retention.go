package services

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"slacord-relay/models"
)

// メッセージの出所
const (
	MessageSourceSlack   = "slack"   // 保持期間内: Slack API から直接取得
	MessageSourceDiscord = "discord" // 保持期間外: アーカイブDBから取得
)

// DefaultRetentionWindow は Slack 無料プランのメッセージ保持期間
const DefaultRetentionWindow = 90 * 24 * time.Hour

// TimelineMessage は取得結果の1件（出所タグ付き）
type TimelineMessage struct {
	MessageID string    `json:"messageId"`
	Content   string    `json:"content"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // "slack" または "discord"
}

// TimelinePage は取得結果のページ
type TimelinePage struct {
	Messages   []TimelineMessage `json:"messages"`
	HasMore    bool              `json:"hasMore"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// RetentionService は保持期間に応じて取得元を切り替えるリーダー
// 境界（cutoff = now - window）より新しい範囲は Slack API、古い範囲は
// アーカイブDB。1ページの中で両方を混ぜることはない。
type RetentionService struct {
	db     *gorm.DB
	slack  *SlackService
	window time.Duration
}

func NewRetentionService(db *gorm.DB, slack *SlackService, window time.Duration) *RetentionService {
	if window <= 0 {
		window = DefaultRetentionWindow
	}
	return &RetentionService{db: db, slack: slack, window: window}
}

// GetMessages は before 以前のメッセージを新しい順で limit 件取得する
// cursor はアーカイブ側のページング用（前ページ末尾のメッセージID）
func (s *RetentionService) GetMessages(room *models.Room, before time.Time, limit int, cursor string) (*TimelinePage, error) {
	if before.IsZero() {
		before = time.Now()
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	cutoff := time.Now().Add(-s.window)

	if before.Before(cutoff) {
		return s.getArchivedMessages(room, before, limit, cursor)
	}
	return s.getLiveMessages(room, cutoff, before, limit)
}

// getLiveMessages は Slack API から保持期間内のメッセージを取得する
// Slack 側のエラー（権限不足など）は空ページとして扱い、エラーにしない
func (s *RetentionService) getLiveMessages(room *models.Room, cutoff, before time.Time, limit int) (*TimelinePage, error) {
	history, err := s.slack.GetMessages(room.SlackChannelID, limit, TimeToSlackTs(cutoff), TimeToSlackTs(before))
	if err != nil {
		log.Printf("slack履歴取得エラー（空ページで継続）: %v", err)
		return &TimelinePage{Messages: []TimelineMessage{}}, nil
	}

	page := &TimelinePage{
		Messages:   make([]TimelineMessage, 0, len(history.Messages)),
		HasMore:    history.HasMore,
		NextCursor: history.NextCursor,
	}
	for _, msg := range history.Messages {
		page.Messages = append(page.Messages, TimelineMessage{
			MessageID: msg.MessageID,
			Content:   msg.Content,
			Username:  msg.Username,
			Timestamp: msg.Timestamp,
			Source:    MessageSourceSlack,
		})
	}
	return page, nil
}

// getArchivedMessages はアーカイブDBから保持期間外のメッセージを取得する
// cursor には前ページ末尾の Discord メッセージID（pending 行は Slack ts）が入る
func (s *RetentionService) getArchivedMessages(room *models.Room, before time.Time, limit int, cursor string) (*TimelinePage, error) {
	if cursor != "" {
		var row models.Message
		err := s.db.Where("room_id = ? AND (discord_message_id = ? OR slack_message_id = ?)", room.ID, cursor, cursor).
			First(&row).Error
		if err == nil {
			before = row.SentAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	var rows []models.Message
	err := s.db.Where("room_id = ? AND sent_at < ?", room.ID, before).
		Order("sent_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	page := &TimelinePage{
		Messages: make([]TimelineMessage, 0, len(rows)),
		HasMore:  len(rows) == limit,
	}
	for _, row := range rows {
		id := row.DiscordMessageID
		if id == "" {
			id = row.SlackMessageID
		}
		page.Messages = append(page.Messages, TimelineMessage{
			MessageID: id,
			Content:   row.Content,
			Username:  row.Username,
			Timestamp: row.SentAt,
			Source:    MessageSourceDiscord,
		})
	}
	if n := len(page.Messages); n > 0 {
		page.NextCursor = page.Messages[n-1].MessageID
	}
	return page, nil
}
