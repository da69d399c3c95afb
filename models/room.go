package models

import "time"

// Room は Slack チャンネルと Discord チャンネルの 1:1 マッピング
// SlackChannelID はマッピング全体でユニーク（1つのSlackチャンネルの
// バックアップ先は常に1つ）
type Room struct {
	ID          string `gorm:"primaryKey"`
	TeamID      string `gorm:"index"`
	Name        string
	Description string

	SlackChannelID   string `gorm:"uniqueIndex"`
	SlackChannelName string

	DiscordChannelID   string
	DiscordChannelName string
	DiscordWebhookURL  string

	IsActive     bool  `gorm:"default:true"`
	MessageCount int64 // バックアップ済みメッセージ数
	LastBackupAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
