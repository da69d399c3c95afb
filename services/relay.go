package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"slacord-relay/models"
)

// SlackEventFile は message イベント内の files 要素
type SlackEventFile struct {
	Name       string `json:"name"`
	URLPrivate string `json:"url_private"`
	Mimetype   string `json:"mimetype"`
	Size       int64  `json:"size"`
}

// SlackMessageEvent は Slack Events API から届く message イベント
type SlackMessageEvent struct {
	Type     string           `json:"type"`
	Subtype  string           `json:"subtype"`
	BotID    string           `json:"bot_id"`
	Channel  string           `json:"channel"`
	User     string           `json:"user"`
	Text     string           `json:"text"`
	Ts       string           `json:"ts"`
	ThreadTs string           `json:"thread_ts"`
	Files    []SlackEventFile `json:"files"`
}

// InboundMessage はベンダー形式から正規化した受信メッセージ
type InboundMessage struct {
	SlackMessageID string
	SlackChannelID string
	SlackUserID    string
	Text           string
	ThreadTs       string
	Attachments    []models.Attachment
	SentAt         time.Time
}

// NormalizeMessageEvent は Slack イベントを正規化する
// 必須フィールドが欠けている場合やボットメッセージは nil を返す（破棄）
func NormalizeMessageEvent(event *SlackMessageEvent) *InboundMessage {
	if event.Type != "message" {
		return nil
	}

	// ボットのメッセージは無視（転送ループ防止）
	if event.BotID != "" || event.Subtype == "bot_message" {
		return nil
	}

	// 必須フィールドのチェック: ts・チャンネル・本文（テキストか添付）
	if event.Ts == "" || event.Channel == "" {
		log.Printf("⚠️ 必須フィールド欠落のためイベントを破棄: ts=%q channel=%q", event.Ts, event.Channel)
		return nil
	}
	if event.Text == "" && len(event.Files) == 0 {
		log.Printf("⚠️ 本文も添付もないイベントを破棄: ts=%s", event.Ts)
		return nil
	}

	attachments := make([]models.Attachment, 0, len(event.Files))
	for _, f := range event.Files {
		attachments = append(attachments, models.Attachment{
			FileName: f.Name,
			FileURL:  f.URLPrivate,
			FileType: f.Mimetype,
			FileSize: f.Size,
		})
	}

	return &InboundMessage{
		SlackMessageID: event.Ts,
		SlackChannelID: event.Channel,
		SlackUserID:    event.User,
		Text:           event.Text,
		ThreadTs:       event.ThreadTs,
		Attachments:    attachments,
		SentAt:         SlackTsToTime(event.Ts),
	}
}

// RelayService は正規化済みメッセージのアーカイブと Discord 転送を行う
// 転送はレスポンスを待たないバックグラウンド処理で、失敗は
// ForwardErrors チャンネル経由で監視側に通知される
type RelayService struct {
	db          *gorm.DB
	slack       *SlackService
	discord     *DiscordService
	forwardErrs chan error
	wg          sync.WaitGroup
}

func NewRelayService(db *gorm.DB, slack *SlackService, discord *DiscordService) *RelayService {
	return &RelayService{
		db:          db,
		slack:       slack,
		discord:     discord,
		forwardErrs: make(chan error, 64),
	}
}

// ForwardErrors はバックグラウンド転送の失敗を通知するチャンネルを返す
func (r *RelayService) ForwardErrors() <-chan error {
	return r.forwardErrs
}

// WaitForwards は進行中の転送がすべて終わるまで待つ（テスト用）
func (r *RelayService) WaitForwards() {
	r.wg.Wait()
}

// HandleMessage は受信メッセージを処理する
// 1. チャンネルに対応する Room を検索（なければ破棄）
// 2. DBへ保存（耐久性優先: 転送に失敗してもアーカイブは残す）
// 3. Discord へバックグラウンドで転送
func (r *RelayService) HandleMessage(msg *InboundMessage) {
	var room models.Room
	err := r.db.Where("slack_channel_id = ? AND is_active = ?", msg.SlackChannelID, true).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️ マッピングのないチャンネルからのメッセージを破棄: %s", msg.SlackChannelID)
		} else {
			log.Printf("room lookup error: %v", err)
		}
		return
	}

	// 再配送の検知: 同じ ts が保存済みなら何もしない（転送もしない）
	var count int64
	r.db.Model(&models.Message{}).Where("slack_message_id = ?", msg.SlackMessageID).Count(&count)
	if count > 0 {
		log.Printf("既にアーカイブ済みのメッセージをスキップ: %s", msg.SlackMessageID)
		return
	}

	username := "Unknown User"
	icon := ""
	if msg.SlackUserID != "" {
		username, icon = r.slack.GetUserInfo(msg.SlackUserID)
	}

	msgType := models.MessageTypeNormal
	if msg.ThreadTs != "" {
		msgType = models.MessageTypeThreadReply
	} else if len(msg.Attachments) > 0 {
		msgType = models.MessageTypeFileShare
	}

	record := models.Message{
		ID:               uuid.NewString(),
		TeamID:           room.TeamID,
		RoomID:           room.ID,
		SlackMessageID:   msg.SlackMessageID,
		SlackChannelID:   msg.SlackChannelID,
		SlackChannelName: room.SlackChannelName,
		SlackUserID:      msg.SlackUserID,
		Username:         username,
		UserIcon:         icon,
		Content:          msg.Text,
		Type:             msgType,
		ThreadTS:         msg.ThreadTs,
		Attachments:      msg.Attachments,
		DiscordChannelID: room.DiscordChannelID,
		SentAt:           msg.SentAt,
	}

	if err := r.db.Create(&record).Error; err != nil {
		// ユニーク制約違反は並行再配送のケースなので正常扱い
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			log.Printf("既にアーカイブ済みのメッセージをスキップ: %s", msg.SlackMessageID)
			return
		}
		log.Printf("メッセージ保存エラー: %v", err)
		return
	}

	log.Printf("✅ アーカイブ保存完了: %s", record.SlackMessageID)

	// Discord への転送は呼び出し元をブロックしない
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.forward(record, room)
	}()
}

// forward は Discord Webhook への転送と転送結果の反映を行う
// 失敗したメッセージは pending のまま残る（自動リトライなし）
func (r *RelayService) forward(record models.Message, room models.Room) {
	payload := DiscordWebhookPayload{
		Content:   record.Content,
		Username:  record.Username,
		AvatarURL: record.UserIcon,
	}
	for _, att := range record.Attachments {
		payload.Embeds = append(payload.Embeds, DiscordEmbed{
			Title:       att.FileName,
			URL:         att.FileURL,
			Description: fmt.Sprintf("ファイルサイズ: %.2f KB", float64(att.FileSize)/1024),
		})
	}

	result, err := r.discord.SendWebhookMessage(room.DiscordWebhookURL, payload)
	if err != nil {
		r.reportForwardError(fmt.Errorf("discord転送失敗 (ts: %s): %w", record.SlackMessageID, err))
		return
	}

	now := time.Now()
	if err := r.db.Model(&models.Message{}).Where("id = ?", record.ID).Updates(map[string]interface{}{
		"discord_message_id": result.ID,
		"backed_up_at":       now,
	}).Error; err != nil {
		r.reportForwardError(fmt.Errorf("転送結果の保存失敗 (ts: %s): %w", record.SlackMessageID, err))
		return
	}

	r.db.Model(&models.Room{}).Where("id = ?", room.ID).Updates(map[string]interface{}{
		"message_count":  gorm.Expr("message_count + 1"),
		"last_backup_at": now,
	})

	log.Printf("✅ discord転送完了: slack=%s discord=%s", record.SlackMessageID, result.ID)
}

// reportForwardError は監視チャンネルへエラーを送る
// 監視側が詰まっていてもブロックしない（ログには必ず残す）
func (r *RelayService) reportForwardError(err error) {
	log.Printf("%v", err)
	select {
	case r.forwardErrs <- err:
	default:
	}
}

// BackupHistory は過去メッセージの手動バックフィル（最初のセットアップ時や
// 転送失敗分の救済に使う）。バックフィルは同期的に転送まで行う。
func (r *RelayService) BackupHistory(teamID string, limit int) (int, error) {
	var team models.Team
	if err := r.db.Where("id = ?", teamID).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrTeamNotFound
		}
		return 0, err
	}

	var room models.Room
	if err := r.db.Where("team_id = ? AND is_active = ?", teamID, true).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrRoomNotFound
		}
		return 0, err
	}

	history, err := r.slack.GetMessages(room.SlackChannelID, limit, "", "")
	if err != nil {
		return 0, err
	}

	backupCount := 0
	for _, msg := range history.Messages {
		var count int64
		r.db.Model(&models.Message{}).Where("slack_message_id = ?", msg.MessageID).Count(&count)
		if count > 0 {
			continue
		}

		record := models.Message{
			ID:               uuid.NewString(),
			TeamID:           team.ID,
			RoomID:           room.ID,
			SlackMessageID:   msg.MessageID,
			SlackChannelID:   room.SlackChannelID,
			SlackChannelName: room.SlackChannelName,
			Username:         msg.Username,
			Content:          msg.Content,
			Type:             models.MessageTypeNormal,
			DiscordChannelID: room.DiscordChannelID,
			SentAt:           msg.Timestamp,
		}

		if err := r.db.Create(&record).Error; err != nil {
			log.Printf("バックフィル保存エラー (ts: %s): %v", msg.MessageID, err)
			continue
		}

		result, err := r.discord.SendWebhookMessage(room.DiscordWebhookURL, DiscordWebhookPayload{
			Content:  record.Content,
			Username: record.Username,
		})
		if err != nil {
			// 保存済みのまま pending で残す
			r.reportForwardError(fmt.Errorf("バックフィル転送失敗 (ts: %s): %w", msg.MessageID, err))
			continue
		}

		now := time.Now()
		r.db.Model(&models.Message{}).Where("id = ?", record.ID).Updates(map[string]interface{}{
			"discord_message_id": result.ID,
			"backed_up_at":       now,
		})
		r.db.Model(&models.Room{}).Where("id = ?", room.ID).Updates(map[string]interface{}{
			"message_count":  gorm.Expr("message_count + 1"),
			"last_backup_at": now,
		})
		backupCount++
	}

	log.Printf("バックフィル完了: team=%s count=%d", teamID, backupCount)
	return backupCount, nil
}
