package services

import (
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"

	"slacord-relay/config"
)

func TestSendWebhookMessage(t *testing.T) {
	discord := newTestDiscordService()

	defer gock.Off()
	gock.New("https://discord.com").
		Post("/api/webhooks/111/test-webhook-token").
		MatchParam("wait", "true").
		MatchHeader("Content-Type", "application/json").
		Reply(200).
		JSON(map[string]interface{}{
			"id":         "999888777",
			"channel_id": "D12345",
		})

	result, err := discord.SendWebhookMessage(
		"https://discord.com/api/webhooks/111/test-webhook-token",
		DiscordWebhookPayload{Content: "hello", Username: "田中太郎"},
	)
	assert.NoError(t, err)
	assert.Equal(t, "999888777", result.ID)
	assert.Equal(t, "D12345", result.ChannelID)
	assert.True(t, gock.IsDone(), "すべてのモックが使用されていません")
}

func TestSendWebhookMessageError(t *testing.T) {
	discord := newTestDiscordService()

	defer gock.Off()
	gock.New("https://discord.com").
		Post("/api/webhooks/111/test-webhook-token").
		Reply(404).
		JSON(map[string]interface{}{"message": "Unknown Webhook", "code": 10015})

	_, err := discord.SendWebhookMessage(
		"https://discord.com/api/webhooks/111/test-webhook-token",
		DiscordWebhookPayload{Content: "hello"},
	)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestDiscordCreateChannel(t *testing.T) {
	discord := newTestDiscordService()

	defer gock.Off()
	gock.New("https://discord.com").
		Post("/api/v10/guilds/G12345/channels").
		MatchHeader("Authorization", "Bot test-bot-token").
		Reply(200).
		JSON(map[string]interface{}{
			"id":   "D99999",
			"name": "devteam",
		})
	gock.New("https://discord.com").
		Post("/api/v10/channels/D99999/webhooks").
		MatchHeader("Authorization", "Bot test-bot-token").
		Reply(200).
		JSON(map[string]interface{}{
			"id":    "webhook123",
			"token": "webhook-token-abc",
		})

	channelID, channelName, webhookURL, err := discord.CreateChannel("개발팀", "チームの説明")
	assert.NoError(t, err)
	assert.Equal(t, "D99999", channelID)
	assert.Equal(t, "devteam", channelName)
	assert.Equal(t, "https://discord.com/api/webhooks/webhook123/webhook-token-abc", webhookURL)
	assert.True(t, gock.IsDone(), "すべてのモックが使用されていません")
}

func TestDiscordCreateChannelWithoutGuild(t *testing.T) {
	discord := NewDiscordService(&config.Configuration{DiscordBotToken: "test-bot-token"})

	_, _, _, err := discord.CreateChannel("dev", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_GUILD_ID")
}

func TestDeleteChannel(t *testing.T) {
	discord := newTestDiscordService()

	defer gock.Off()
	gock.New("https://discord.com").
		Delete("/api/v10/channels/D12345").
		Reply(204)

	assert.NoError(t, discord.DeleteChannel("D12345"))
	assert.True(t, gock.IsDone(), "すべてのモックが使用されていません")
}
