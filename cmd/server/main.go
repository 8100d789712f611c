package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"sme-docengine/internal/auth"
	"sme-docengine/internal/config"
	"sme-docengine/internal/database"
	"sme-docengine/internal/engine"
	"sme-docengine/internal/handlers"
	"sme-docengine/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logs := logger.WithComponent("server")

	db, err := database.Connect(database.Options{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBDSN,
		LogLevel: cfg.GormLogLevel,
		Retries:  cfg.DBConnectRetries,
		Wait:     2 * time.Second,
	})
	if err != nil {
		logs.Fatal().Err(err).Msg("Could not connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logs.Fatal().Err(err).Msg("Migration failed")
	}

	eng := engine.New(db, engine.WithPolicy(engine.Policy{
		AllowDeleteApproved: cfg.AllowDeleteApproved,
	}))

	if cfg.AllowRegistration {
		logs.Warn().Msg("Registration route is OPEN. Disable this in production!")
	} else {
		logs.Info().Msg("Registration route is disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	r := handlers.NewRouter(handlers.RouterConfig{
		DB:                db,
		Engine:            eng,
		Signer:            auth.NewSigner(cfg.JWTSecret, cfg.JWTTTL),
		CORSOrigins:       cfg.CORSOrigins,
		AllowRegistration: cfg.AllowRegistration,
	})

	logs.Info().Str("addr", cfg.HTTPAddr).Msg("Server starting")
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logs.Fatal().Err(err).Msg("Server failed to start")
	}
}
