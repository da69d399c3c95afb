package models

import "time"

// User はダッシュボードにログインする一般ユーザー
type User struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex"`
	Password     string // bcryptハッシュ
	Username     string
	ProfileImage string
	IsActive     bool `gorm:"default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
