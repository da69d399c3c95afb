package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"slacord-relay/config"
)

const discordAPIBaseURL = "https://discord.com/api/v10"

// DiscordService は Discord の Webhook 送信と Bot REST API を扱う
type DiscordService struct {
	botToken string
	guildID  string
	baseURL  string
}

func NewDiscordService(cfg *config.Configuration) *DiscordService {
	return &DiscordService{
		botToken: cfg.DiscordBotToken,
		guildID:  cfg.DiscordGuildID,
		baseURL:  discordAPIBaseURL,
	}
}

// DiscordEmbed は Webhook ペイロードの embed
type DiscordEmbed struct {
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// DiscordWebhookPayload は Webhook 送信ペイロード
type DiscordWebhookPayload struct {
	Content   string         `json:"content"`
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordWebhookResult は Webhook 送信結果（?wait=true のレスポンス）
type DiscordWebhookResult struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// SendWebhookMessage は Webhook でメッセージを送信し、割り当てられた
// メッセージIDを返す（?wait=true でレスポンスを待つ）
func (d *DiscordService) SendWebhookMessage(webhookURL string, payload DiscordWebhookPayload) (*DiscordWebhookResult, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", webhookURL+"?wait=true", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("discord webhook returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result DiscordWebhookResult
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return nil, fmt.Errorf("discord webhook response parse error: %w", err)
	}

	return &result, nil
}

// discordChannel は REST API のチャンネルレスポンス
type discordChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// discordWebhook は REST API の Webhook レスポンス
type discordWebhook struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// CreateChannel はギルドにテキストチャンネルと転送用 Webhook を作成する
func (d *DiscordService) CreateChannel(name, description string) (channelID, channelName, webhookURL string, err error) {
	if d.guildID == "" {
		return "", "", "", fmt.Errorf("DISCORD_GUILD_ID is not configured")
	}

	sanitized := SanitizeChannelName(KoreanToRoman(name), 100)

	topic := description
	if len(topic) > 1024 {
		topic = topic[:1024]
	}

	var channel discordChannel
	err = d.doRequest("POST", fmt.Sprintf("%s/guilds/%s/channels", d.baseURL, d.guildID), map[string]interface{}{
		"name":  sanitized,
		"type":  0, // GUILD_TEXT
		"topic": topic,
	}, &channel)
	if err != nil {
		return "", "", "", fmt.Errorf("discord channel create error: %w", err)
	}

	var webhook discordWebhook
	err = d.doRequest("POST", fmt.Sprintf("%s/channels/%s/webhooks", d.baseURL, channel.ID), map[string]interface{}{
		"name": "Slacord Backup",
	}, &webhook)
	if err != nil {
		return "", "", "", fmt.Errorf("discord webhook create error: %w", err)
	}

	webhookURL = fmt.Sprintf("https://discord.com/api/webhooks/%s/%s", webhook.ID, webhook.Token)

	log.Printf("discordチャンネル作成完了: %s (%s)", channel.Name, channel.ID)
	return channel.ID, channel.Name, webhookURL, nil
}

// DeleteChannel はチャンネルを削除する
func (d *DiscordService) DeleteChannel(channelID string) error {
	if err := d.doRequest("DELETE", fmt.Sprintf("%s/channels/%s", d.baseURL, channelID), nil, nil); err != nil {
		return fmt.Errorf("discord channel delete error: %w", err)
	}
	log.Printf("discordチャンネル削除完了: %s", channelID)
	return nil
}

// doRequest は Bot トークン付きで Discord REST API を呼び出す
func (d *DiscordService) doRequest(method, url string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+d.botToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord api returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if out != nil {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return err
		}
	}
	return nil
}
