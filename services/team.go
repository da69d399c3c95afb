package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"slacord-relay/models"
)

var (
	ErrTeamNotFound = errors.New("チームが見つかりません")
	ErrRoomNotFound = errors.New("roomが見つかりません")

	ErrInviteInvalid  = errors.New("無効な招待リンクです")
	ErrInviteInactive = errors.New("無効化された招待リンクです")
	ErrInviteExpired  = errors.New("期限切れの招待リンクです")
	ErrInviteExhausted = errors.New("招待リンクの使用回数が上限に達しました")
	ErrAlreadyMember  = errors.New("すでにチームに参加しています")
	ErrNotTeamOwner   = errors.New("チームのオーナーのみ実行できます")
	ErrCannotRemoveOwner = errors.New("オーナーをチームから削除することはできません")
	ErrMemberNotFound = errors.New("メンバーが見つかりません")
)

// TeamService はチームと Room（チャンネルマッピング）の管理
// チーム作成時に Slack / Discord の両方へチャンネルを自動作成する
type TeamService struct {
	db          *gorm.DB
	slack       *SlackService
	discord     *DiscordService
	frontendURL string
}

func NewTeamService(db *gorm.DB, slack *SlackService, discord *DiscordService, frontendURL string) *TeamService {
	return &TeamService{db: db, slack: slack, discord: discord, frontendURL: frontendURL}
}

// CreateTeam はチームを作成する
// 1. Slack 公式ワークスペースにチャンネル作成
// 2. Discord 公式サーバーにチャンネル + Webhook 作成
// 3. Team とデフォルト Room を保存
func (s *TeamService) CreateTeam(name, description, ownerID string) (*models.Team, error) {
	log.Printf("チーム作成開始: %s", name)

	slackChannelID, slackChannelName, err := s.slack.CreateChannel(name, description)
	if err != nil {
		return nil, friendlyChannelError(name, err)
	}

	discordChannelID, discordChannelName, webhookURL, err := s.discord.CreateChannel(name, description)
	if err != nil {
		return nil, fmt.Errorf("チャンネル作成に失敗しました: %w", err)
	}

	team := models.Team{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		Members: []models.TeamMember{
			{UserID: ownerID, Role: "owner", JoinedAt: time.Now()},
		},
		SlackWorkspaceName: "Slacord Official",
		DiscordServerName:  "Slacord Official",
		IsActive:           true,
	}
	if err := s.db.Create(&team).Error; err != nil {
		return nil, err
	}

	room := models.Room{
		ID:                 uuid.NewString(),
		TeamID:             team.ID,
		Name:               name,
		Description:        description,
		SlackChannelID:     slackChannelID,
		SlackChannelName:   slackChannelName,
		DiscordChannelID:   discordChannelID,
		DiscordChannelName: discordChannelName,
		DiscordWebhookURL:  webhookURL,
		IsActive:           true,
	}
	if err := s.db.Create(&room).Error; err != nil {
		return nil, err
	}

	log.Printf("✅ チーム作成完了: %s (%s)", team.Name, team.ID)
	return &team, nil
}

// friendlyChannelError は Slack API のエラーを分かりやすい文言に変換する
func friendlyChannelError(name string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "name_taken"):
		return fmt.Errorf("'%s' チャンネルはすでに存在します。別の名前を使用してください", name)
	case strings.Contains(msg, "invalid_name"):
		return errors.New("チャンネル名が正しくありません。英小文字・数字・ハイフン・アンダースコアのみ使用できます")
	default:
		return fmt.Errorf("チャンネル作成に失敗しました: %w", err)
	}
}

// GetAllTeams は全チームを新しい順で返す
func (s *TeamService) GetAllTeams() ([]models.Team, error) {
	var teams []models.Team
	err := s.db.Order("created_at DESC").Find(&teams).Error
	return teams, err
}

// GetTeamByID はチームを取得する
func (s *TeamService) GetTeamByID(teamID string) (*models.Team, error) {
	var team models.Team
	if err := s.db.Where("id = ?", teamID).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return &team, nil
}

// UpdateTeam はチームの名前・説明・有効状態を更新する
func (s *TeamService) UpdateTeam(teamID string, updates map[string]interface{}) (*models.Team, error) {
	team, err := s.GetTeamByID(teamID)
	if err != nil {
		return nil, err
	}

	updates["updated_at"] = time.Now()
	if err := s.db.Model(team).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetTeamByID(teamID)
}

// DeleteTeam はチームと配下の Room・メッセージをまとめて削除する
// 外部チャンネルの後始末（Slackアーカイブ / Discord削除）はベストエフォート
func (s *TeamService) DeleteTeam(teamID string) error {
	team, err := s.GetTeamByID(teamID)
	if err != nil {
		return err
	}

	var rooms []models.Room
	s.db.Where("team_id = ?", teamID).Find(&rooms)
	for _, room := range rooms {
		if room.SlackChannelID != "" {
			if err := s.slack.ArchiveChannel(room.SlackChannelID); err != nil {
				log.Printf("slackチャンネルアーカイブ失敗 (channel: %s): %v", room.SlackChannelID, err)
			}
		}
		if room.DiscordChannelID != "" {
			if err := s.discord.DeleteChannel(room.DiscordChannelID); err != nil {
				log.Printf("discordチャンネル削除失敗 (channel: %s): %v", room.DiscordChannelID, err)
			}
		}
	}

	if err := s.db.Where("team_id = ?", teamID).Delete(&models.Message{}).Error; err != nil {
		return err
	}
	if err := s.db.Where("team_id = ?", teamID).Delete(&models.Room{}).Error; err != nil {
		return err
	}
	if err := s.db.Delete(&models.Team{}, "id = ?", teamID).Error; err != nil {
		return err
	}

	log.Printf("チーム削除完了: %s", team.Name)
	return nil
}

// CreateRoom はチーム配下に Room を追加する
func (s *TeamService) CreateRoom(teamID string, room *models.Room) (*models.Room, error) {
	if _, err := s.GetTeamByID(teamID); err != nil {
		return nil, err
	}

	room.ID = uuid.NewString()
	room.TeamID = teamID
	room.IsActive = true
	if err := s.db.Create(room).Error; err != nil {
		return nil, err
	}

	log.Printf("room作成完了: %s (team: %s)", room.Name, teamID)
	return room, nil
}

// GetRoomsByTeam はチームの Room 一覧を新しい順で返す
func (s *TeamService) GetRoomsByTeam(teamID string) ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.Where("team_id = ?", teamID).Order("created_at DESC").Find(&rooms).Error
	return rooms, err
}

// GetRoomByID は Room を取得する
func (s *TeamService) GetRoomByID(roomID string) (*models.Room, error) {
	var room models.Room
	if err := s.db.Where("id = ?", roomID).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// GetActiveRoomByTeam はチームの有効な Room を1つ返す（MVPでは1チーム1Room）
func (s *TeamService) GetActiveRoomByTeam(teamID string) (*models.Room, error) {
	var room models.Room
	if err := s.db.Where("team_id = ? AND is_active = ?", teamID, true).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// GetRoomBySlackChannel は Slack チャンネルIDから Room を検索する
func (s *TeamService) GetRoomBySlackChannel(slackChannelID string) (*models.Room, error) {
	var room models.Room
	if err := s.db.Where("slack_channel_id = ?", slackChannelID).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// UpdateRoom は Room の名前・説明・有効状態を更新する
func (s *TeamService) UpdateRoom(roomID string, updates map[string]interface{}) (*models.Room, error) {
	room, err := s.GetRoomByID(roomID)
	if err != nil {
		return nil, err
	}

	updates["updated_at"] = time.Now()
	if err := s.db.Model(room).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetRoomByID(roomID)
}

// DeleteRoom は Room を削除する
func (s *TeamService) DeleteRoom(roomID string) error {
	room, err := s.GetRoomByID(roomID)
	if err != nil {
		return err
	}
	return s.db.Delete(room).Error
}

// GenerateInviteLink は招待リンクを発行する
// maxUses が 0 の場合は回数無制限
func (s *TeamService) GenerateInviteLink(teamID string, expiresInDays, maxUses int) (token, inviteURL string, err error) {
	team, err := s.GetTeamByID(teamID)
	if err != nil {
		return "", "", err
	}

	if expiresInDays <= 0 {
		expiresInDays = 7
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	expiresAt := time.Now().AddDate(0, 0, expiresInDays)

	err = s.db.Model(team).Updates(map[string]interface{}{
		"invite_token":        token,
		"invite_expires_at":   expiresAt,
		"invite_is_active":    true,
		"invite_max_uses":     maxUses,
		"invite_current_uses": 0,
	}).Error
	if err != nil {
		return "", "", err
	}

	inviteURL = fmt.Sprintf("%s/invite/%s", s.frontendURL, token)
	log.Printf("招待リンク発行: %s", team.Name)
	return token, inviteURL, nil
}

// JoinTeamByInvite は招待リンクでチームに参加する
func (s *TeamService) JoinTeamByInvite(inviteToken, userID string) (*models.Team, error) {
	var team models.Team
	if err := s.db.Where("invite_token = ?", inviteToken).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviteInvalid
		}
		return nil, err
	}

	if !team.InviteIsActive {
		return nil, ErrInviteInactive
	}
	if team.InviteExpiresAt != nil && time.Now().After(*team.InviteExpiresAt) {
		return nil, ErrInviteExpired
	}
	if team.InviteMaxUses > 0 && team.InviteCurrentUses >= team.InviteMaxUses {
		return nil, ErrInviteExhausted
	}
	if team.HasMember(userID) {
		return nil, ErrAlreadyMember
	}

	team.Members = append(team.Members, models.TeamMember{
		UserID:   userID,
		Role:     "member",
		JoinedAt: time.Now(),
	})
	team.InviteCurrentUses++

	if err := s.db.Save(&team).Error; err != nil {
		return nil, err
	}

	log.Printf("チーム参加完了: %s (user: %s)", team.Name, userID)
	return &team, nil
}

// DeactivateInviteLink は招待リンクを無効化する
func (s *TeamService) DeactivateInviteLink(teamID string) error {
	team, err := s.GetTeamByID(teamID)
	if err != nil {
		return err
	}
	return s.db.Model(team).Update("invite_is_active", false).Error
}

// TeamMemberInfo はメンバー一覧用にユーザー情報を足したもの
type TeamMemberInfo struct {
	UserID   string    `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// GetTeamMembers はメンバー一覧をユーザー情報付きで返す
func (s *TeamService) GetTeamMembers(teamID string) ([]TeamMemberInfo, error) {
	team, err := s.GetTeamByID(teamID)
	if err != nil {
		return nil, err
	}

	members := make([]TeamMemberInfo, 0, len(team.Members))
	for _, m := range team.Members {
		info := TeamMemberInfo{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt}
		var user models.User
		if err := s.db.Where("id = ?", m.UserID).First(&user).Error; err == nil {
			info.Username = user.Username
			info.Email = user.Email
		}
		members = append(members, info)
	}
	return members, nil
}

// RemoveMember はメンバーをチームから外す（オーナーのみ、オーナー自身は不可）
func (s *TeamService) RemoveMember(teamID, targetUserID, requesterID string) error {
	team, err := s.GetTeamByID(teamID)
	if err != nil {
		return err
	}

	if team.OwnerID != requesterID {
		return ErrNotTeamOwner
	}
	if targetUserID == team.OwnerID {
		return ErrCannotRemoveOwner
	}

	filtered := make([]models.TeamMember, 0, len(team.Members))
	found := false
	for _, m := range team.Members {
		if m.UserID == targetUserID {
			found = true
			continue
		}
		filtered = append(filtered, m)
	}
	if !found {
		return ErrMemberNotFound
	}

	team.Members = filtered
	return s.db.Save(team).Error
}
