package services

import (
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"slacord-relay/config"
)

// SlackService は Slack Web API のラッパー
type SlackService struct {
	client *slack.Client
}

func NewSlackService(cfg *config.Configuration) *SlackService {
	// http.DefaultClient を使うことでテスト時に gock で差し替えられる
	client := slack.New(cfg.SlackBotToken, slack.OptionHTTPClient(http.DefaultClient))
	return &SlackService{client: client}
}

// SlackPostResult はメッセージ送信結果
type SlackPostResult struct {
	MessageTs string
	ChannelID string
	Timestamp time.Time
}

// SlackHistoryMessage は履歴取得結果の1件
type SlackHistoryMessage struct {
	MessageID string
	Content   string
	Username  string
	Timestamp time.Time
}

// SlackHistory は履歴取得結果のページ
type SlackHistory struct {
	Messages   []SlackHistoryMessage
	HasMore    bool
	NextCursor string
}

// GetUserInfo はユーザーの表示名とアイコンを取得する
// 取得できない場合は "Unknown User" にフォールバックする（エラーにしない）
func (s *SlackService) GetUserInfo(userID string) (username string, icon string) {
	user, err := s.client.GetUserInfo(userID)
	if err != nil {
		log.Printf("slack user info error (user: %s): %v", userID, err)
		return "Unknown User", ""
	}

	username = user.RealName
	if username == "" {
		username = user.Name
	}
	if username == "" {
		username = "Unknown User"
	}
	return username, user.Profile.Image72
}

// PostMessage は指定チャンネルへメッセージを送信する
// username を指定すると Bot がその名前で投稿する
func (s *SlackService) PostMessage(channelID, text, username string) (*SlackPostResult, error) {
	options := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if username != "" {
		options = append(options, slack.MsgOptionUsername(username))
	}

	respChannel, ts, err := s.client.PostMessage(channelID, options...)
	if err != nil {
		return nil, fmt.Errorf("slack post message error: %w", err)
	}

	return &SlackPostResult{
		MessageTs: ts,
		ChannelID: respChannel,
		Timestamp: SlackTsToTime(ts),
	}, nil
}

// GetMessages はチャンネルの履歴を新しい順で取得する
// oldest / latest は Slack の ts 形式（空なら指定なし）
func (s *SlackService) GetMessages(channelID string, limit int, oldest, latest string) (*SlackHistory, error) {
	resp, err := s.client.GetConversationHistory(&slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
		Oldest:    oldest,
		Latest:    latest,
	})
	if err != nil {
		return nil, fmt.Errorf("slack history error: %w", err)
	}

	history := &SlackHistory{HasMore: resp.HasMore}
	for _, msg := range resp.Messages {
		username := msg.Username
		if username == "" {
			username = msg.User
		}
		if username == "" {
			username = "Unknown"
		}
		history.Messages = append(history.Messages, SlackHistoryMessage{
			MessageID: msg.Timestamp,
			Content:   msg.Text,
			Username:  username,
			Timestamp: SlackTsToTime(msg.Timestamp),
		})
	}

	if n := len(history.Messages); n > 0 {
		history.NextCursor = history.Messages[n-1].MessageID
	}
	return history, nil
}

// CreateChannel は公開チャンネルを作成する
// 日本語・韓国語などの名前は KoreanToRoman + SanitizeChannelName で変換される
func (s *SlackService) CreateChannel(name, description string) (channelID, channelName string, err error) {
	sanitized := SanitizeChannelName(KoreanToRoman(name), 80)

	channel, err := s.client.CreateConversation(slack.CreateConversationParams{
		ChannelName: sanitized,
		IsPrivate:   false,
	})
	if err != nil {
		return "", "", fmt.Errorf("slack channel create error: %w", err)
	}

	if description != "" {
		topic := description
		if len(topic) > 250 {
			topic = topic[:250]
		}
		if _, err := s.client.SetTopicOfConversation(channel.ID, topic); err != nil {
			log.Printf("slack topic set error (channel: %s): %v", channel.ID, err)
		}
	}

	log.Printf("slackチャンネル作成完了: %s (%s)", channel.Name, channel.ID)
	return channel.ID, channel.Name, nil
}

// ArchiveChannel はチャンネルをアーカイブする（Slackは完全削除不可）
func (s *SlackService) ArchiveChannel(channelID string) error {
	if err := s.client.ArchiveConversation(channelID); err != nil {
		return fmt.Errorf("slack channel archive error: %w", err)
	}
	log.Printf("slackチャンネルアーカイブ完了: %s", channelID)
	return nil
}

// koreanRomanTable は韓国語の部署名をローマ字へ置換する静的テーブル
var koreanRomanTable = []struct {
	korean string
	roman  string
}{
	{"개발", "dev"},
	{"팀", "team"},
	{"마케팅", "marketing"},
	{"영업", "sales"},
	{"디자인", "design"},
	{"기획", "planning"},
	{"인사", "hr"},
	{"총무", "admin"},
	{"재무", "finance"},
	{"관리", "management"},
	{"프로젝트", "project"},
	{"운영", "operation"},
	{"지원", "support"},
	{"고객", "customer"},
	{"서비스", "service"},
}

// KoreanToRoman は韓国語の頻出単語を英語へ変換する
func KoreanToRoman(text string) string {
	result := text
	for _, entry := range koreanRomanTable {
		result = strings.ReplaceAll(result, entry.korean, entry.roman)
	}
	return result
}

var invalidChannelChars = regexp.MustCompile(`[^a-z0-9-_]`)

// SanitizeChannelName はチャンネル名の命名規則（小文字・数字・ハイフン・
// アンダースコアのみ）に合わせて整形する
func SanitizeChannelName(name string, maxLen int) string {
	sanitized := strings.ToLower(name)
	sanitized = strings.Join(strings.Fields(sanitized), "-")
	sanitized = invalidChannelChars.ReplaceAllString(sanitized, "")
	sanitized = strings.Trim(sanitized, "-")
	if len(sanitized) > maxLen {
		sanitized = sanitized[:maxLen]
	}
	if sanitized == "" {
		return "channel"
	}
	return sanitized
}

// SlackTsToTime は Slack の ts 値（"1704067200.123456"）を time.Time へ変換する
func SlackTsToTime(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// TimeToSlackTs は time.Time を Slack の ts 形式へ変換する
func TimeToSlackTs(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}
