package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stagetimer/internal/auth"
	"stagetimer/internal/config"
	"stagetimer/internal/database"
	"stagetimer/internal/handlers"
	"stagetimer/internal/room"
	"stagetimer/internal/services"
	"stagetimer/internal/websocket"
)

func main() {
	// Load configuration
	cfg := config.Load()
	setupLogger(cfg.Logging.Level)

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Sync core: registry + hub + command service + tick engine
	registry := room.NewRegistry()
	hub := websocket.NewHub()
	core := room.NewService(registry, hub, clockwork.NewRealClock())
	engine := room.NewEngine(core)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	// Services
	authService := auth.NewService(db, cfg)
	roomService := services.NewRoomService(db, core)
	if err := roomService.RestoreRooms(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to restore rooms")
	}

	// Handlers
	authHandlers := handlers.NewAuthHandlers(authService)
	roomHandlers := handlers.NewRoomHandlers(roomService, authService)
	wsHandlers := handlers.NewWebSocketHandlers(authService, hub, core, registry)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, authHandlers, roomHandlers, wsHandlers)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsHandler.Handler(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Port).Msg("server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("server shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func setupRoutes(mux *http.ServeMux, authHandlers *handlers.AuthHandlers, roomHandlers *handlers.RoomHandlers, wsHandlers *handlers.WebSocketHandlers) {
	// Auth routes
	mux.HandleFunc("POST /api/auth/register", authHandlers.Register)
	mux.HandleFunc("POST /api/auth/login", authHandlers.Login)

	// Room allocation routes
	mux.HandleFunc("POST /api/rooms", roomHandlers.CreateRoom)
	mux.HandleFunc("GET /api/rooms", roomHandlers.ListRooms)
	mux.HandleFunc("DELETE /api/rooms/{id}", roomHandlers.DeleteRoom)
	// Path the original frontend calls
	mux.HandleFunc("POST /api/room/create-room", roomHandlers.CreateRoom)

	// WebSocket route
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)

	mux.HandleFunc("GET /health", wsHandlers.Health)
	mux.HandleFunc("GET /stats", wsHandlers.Stats)
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
