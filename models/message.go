package models

import "time"

// メッセージ種別
const (
	MessageTypeNormal      = "message"
	MessageTypeThreadReply = "thread_reply"
	MessageTypeFileShare   = "file_share"
)

// アーカイブ状態
// pending のまま転送に失敗した場合は手動バックフィルでのみ再試行される
const (
	MessageStatusPending  = "pending"
	MessageStatusArchived = "archived"
)

// Attachment は Slack メッセージの添付ファイル情報
type Attachment struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

// Message は Slack から受信してアーカイブしたメッセージ
// SlackMessageID（ts値）のユニーク制約で再配送を冪等にする
type Message struct {
	ID     string `gorm:"primaryKey"`
	TeamID string `gorm:"index"`
	RoomID string `gorm:"index"`

	SlackMessageID   string `gorm:"uniqueIndex"`
	SlackChannelID   string `gorm:"index:idx_messages_channel_sent"`
	SlackChannelName string
	SlackUserID      string `gorm:"index:idx_messages_user_sent"`
	Username         string
	UserIcon         string

	Content     string
	Type        string // "message", "thread_reply", "file_share"
	ThreadTS    string
	Attachments []Attachment `gorm:"serializer:json"`

	DiscordChannelID string
	DiscordMessageID string // Discord転送成功まで空

	SentAt     time.Time `gorm:"index;index:idx_messages_channel_sent;index:idx_messages_user_sent"`
	BackedUpAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Status はアーカイブ状態を返す
func (m *Message) Status() string {
	if m.DiscordMessageID != "" {
		return MessageStatusArchived
	}
	return MessageStatusPending
}
