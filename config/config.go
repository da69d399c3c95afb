package config

import (
	"fmt"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Configuration はアプリケーション全体の設定
// 起動時に一度だけ読み込み、各サービスのコンストラクタに渡す
type Configuration struct {
	Address            string `env:"ADDRESS" envDefault:":8082"`
	DatabasePath       string `env:"DATABASE_PATH" envDefault:"slacord.db"`
	JwtSecret          string `env:"JWT_SECRET" envDefault:"slacord-secret-key"`
	SlackBotToken      string `env:"SLACK_BOT_TOKEN"`
	SlackSigningSecret string `env:"SLACK_SIGNING_SECRET"`
	DiscordBotToken    string `env:"DISCORD_BOT_TOKEN"`
	DiscordGuildID     string `env:"DISCORD_GUILD_ID"`
	RetentionDays      int    `env:"RETENTION_DAYS" envDefault:"90"` // Slackの無料プラン保持期間
	FrontendURL        string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
}

// New は .env を読み込んで Configuration を組み立てる
// .env がない環境（本番など）では環境変数のみ使用する
func New() (*Configuration, error) {
	_ = godotenv.Load()

	cfg := &Configuration{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config parse error: %w", err)
	}

	return cfg, nil
}
