package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"slacord-relay/services"
)

// HandleSlackEvents は Slack Events API のエンドポイント
// POST /api/slack/events
// - url_verification: チャレンジ応答
// - event_callback: message イベントを正規化してリレーに渡す
// ローカル保存が終わった時点で 200 を返し、Discord 転送は待たない
func HandleSlackEvents(relay *services.RelayService) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		var payload struct {
			Type      string                     `json:"type"`
			Challenge string                     `json:"challenge"`
			Event     services.SlackMessageEvent `json:"event"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			log.Printf("slackイベントのパースエラー: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		// URL検証チャレンジへの応答（Slackアプリ設定時）
		if payload.Type == "url_verification" {
			c.String(http.StatusOK, payload.Challenge)
			return
		}

		if payload.Type == "event_callback" {
			if msg := services.NormalizeMessageEvent(&payload.Event); msg != nil {
				relay.HandleMessage(msg)
			}
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
