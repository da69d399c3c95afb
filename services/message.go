package services

import (
	"log"
	"time"

	"gorm.io/gorm"

	"slacord-relay/models"
)

// MessageService はアーカイブ済みメッセージの検索と集計
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// SearchMessages は本文の全文検索（新しい順）
func (s *MessageService) SearchMessages(query string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	var messages []models.Message
	err := s.db.Where("content LIKE ?", "%"+query+"%").
		Order("sent_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	log.Printf("メッセージ検索完了: %q - %d件", query, len(messages))
	return messages, nil
}

// GetMessagesByChannel はチャンネル別のページング取得（新しい順）
func (s *MessageService) GetMessagesByChannel(channelID string, page, limit int) ([]models.Message, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	var messages []models.Message
	err := s.db.Where("slack_channel_id = ?", channelID).
		Order("sent_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// GetMessagesByUser はユーザー別のページング取得（新しい順）
func (s *MessageService) GetMessagesByUser(userID string, page, limit int) ([]models.Message, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	var messages []models.Message
	err := s.db.Where("slack_user_id = ?", userID).
		Order("sent_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// GetMessagesByDateRange は日付範囲での取得（新しい順）
func (s *MessageService) GetMessagesByDateRange(start, end time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	var messages []models.Message
	err := s.db.Where("sent_at >= ? AND sent_at <= ?", start, end).
		Order("sent_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// GetTotalCount は全メッセージ数
func (s *MessageService) GetTotalCount() (int64, error) {
	var count int64
	err := s.db.Model(&models.Message{}).Count(&count).Error
	return count, err
}

// GetCountByChannel はチャンネル別メッセージ数
func (s *MessageService) GetCountByChannel(channelID string) (int64, error) {
	var count int64
	err := s.db.Model(&models.Message{}).Where("slack_channel_id = ?", channelID).Count(&count).Error
	return count, err
}
