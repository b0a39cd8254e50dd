package main

import (
	"log"
	"net/http"

	"authcore/docs"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"authcore/internal/auth"
	"authcore/internal/cache"
	"authcore/internal/config"
	"authcore/internal/db"
	"authcore/internal/handler"
	"authcore/internal/mail"
	"authcore/internal/model"
	"authcore/internal/repository"
	"authcore/internal/router"
	"authcore/internal/service"
)

// @title Auth Service API
// @version 1.0
// @description Username/password authentication with JWT sessions and email-based password recovery.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}

	e := echo.New()
	e.Use(middleware.RequestID())

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	var mailer mail.Mailer
	if cfg.SMTPHost != "" {
		smtpMailer, err := mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom)
		if err != nil {
			log.Fatalf("mailer init: %v", err)
		}
		mailer = smtpMailer
	} else if cfg.IsDevelopment() {
		log.Println("SMTP_HOST not set, reset mail will be logged instead of sent")
		mailer = mail.LogMailer{}
	} else {
		log.Fatal("SMTP_HOST is required outside development")
	}

	userRepo := repository.NewUserRepository(gormDB)
	hasher := auth.NewPasswordHasher(auth.DefaultBcryptCost)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpire)

	authService := service.NewAuthService(userRepo, hasher, tokens, mailer, cacheClient, cfg.AppBaseURL)
	authHandler := handler.NewAuthHandler(authService, cfg.IsDevelopment())

	router.Register(e, tokens, authHandler)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
