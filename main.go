package main

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"slacord-relay/config"
	"slacord-relay/handlers"
	"slacord-relay/models"
	"slacord-relay/services"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		log.Fatal(err)
	}
	db.AutoMigrate(&models.User{}, &models.Team{}, &models.Room{}, &models.Message{})

	slackService := services.NewSlackService(cfg)
	discordService := services.NewDiscordService(cfg)
	authService := services.NewAuthService(db, cfg.JwtSecret)
	teamService := services.NewTeamService(db, slackService, discordService, cfg.FrontendURL)
	messageService := services.NewMessageService(db)
	relayService := services.NewRelayService(db, slackService, discordService)
	retentionService := services.NewRetentionService(db, slackService,
		time.Duration(cfg.RetentionDays)*24*time.Hour)

	// 転送失敗はアーカイブに影響しないためここでログに流すだけ
	go func() {
		for err := range relayService.ForwardErrors() {
			log.Printf("⚠️ discord転送エラー: %v", err)
		}
	}()

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	authRequired := handlers.AuthMiddleware(authService)

	api := r.Group("/api")
	{
		api.POST("/slack/events", handlers.HandleSlackEvents(relayService))

		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.HandleRegister(authService))
			auth.POST("/login", handlers.HandleLogin(authService))
			auth.GET("/me", authRequired, handlers.HandleMe())
		}

		teams := api.Group("/teams", authRequired)
		{
			teams.POST("", handlers.HandleCreateTeam(teamService))
			teams.GET("", handlers.HandleGetAllTeams(teamService))
			teams.GET("/:teamId", handlers.HandleGetTeam(teamService))
			teams.PUT("/:teamId", handlers.HandleUpdateTeam(teamService))
			teams.DELETE("/:teamId", handlers.HandleDeleteTeam(teamService))
			teams.GET("/:teamId/members", handlers.HandleGetTeamMembers(teamService))
			teams.DELETE("/:teamId/members/:userId", handlers.HandleRemoveMember(teamService))
			teams.POST("/:teamId/invite", handlers.HandleGenerateInvite(teamService))
			teams.DELETE("/:teamId/invite", handlers.HandleDeactivateInvite(teamService))
			teams.POST("/:teamId/backup", handlers.HandleBackupHistory(relayService))
			teams.POST("/:teamId/rooms", handlers.HandleCreateRoom(teamService))
			teams.GET("/:teamId/rooms", handlers.HandleGetRoomsByTeam(teamService))
			teams.GET("/rooms/:roomId", handlers.HandleGetRoom(teamService))
			teams.PUT("/rooms/:roomId", handlers.HandleUpdateRoom(teamService))
			teams.DELETE("/rooms/:roomId", handlers.HandleDeleteRoom(teamService))
			teams.POST("/join/:inviteToken", handlers.HandleJoinByInvite(teamService))
		}

		messages := api.Group("/messages", authRequired)
		{
			messages.GET("", handlers.HandleGetMessages(teamService, retentionService))
			messages.POST("", handlers.HandleSendMessage(teamService, slackService))
			messages.GET("/search", handlers.HandleSearchMessages(messageService))
			messages.GET("/channel/:channelId", handlers.HandleGetMessagesByChannel(messageService))
			messages.GET("/user/:userId", handlers.HandleGetMessagesByUser(messageService))
			messages.GET("/range", handlers.HandleGetMessagesByRange(messageService))
			messages.GET("/stats", handlers.HandleGetStats(messageService))
		}
	}

	log.Printf("✅ slacord-relay を %s で起動します", cfg.Address)
	if err := r.Run(cfg.Address); err != nil {
		log.Fatal(err)
	}
}
