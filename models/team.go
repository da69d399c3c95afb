package models

import "time"

// TeamMember は Team.Members に JSON で保持するメンバー情報
type TeamMember struct {
	UserID   string    `json:"userId"`
	Role     string    `json:"role"` // "owner", "admin", "member"
	JoinedAt time.Time `json:"joinedAt"`
}

// Team は Slack チャンネルと Discord チャンネルのペアを所有する集約
// Team を削除すると配下の Room と Message もまとめて削除される
type Team struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex"`
	Description string
	OwnerID     string       `gorm:"index"`
	Members     []TeamMember `gorm:"serializer:json"`

	// 招待リンク情報
	InviteToken       string `gorm:"index"`
	InviteExpiresAt   *time.Time
	InviteIsActive    bool
	InviteMaxUses     int // 0 は無制限
	InviteCurrentUses int

	SlackWorkspaceName string
	DiscordServerName  string
	IsActive           bool `gorm:"default:true"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasMember は userID がすでにメンバーかどうかを返す
func (t *Team) HasMember(userID string) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
