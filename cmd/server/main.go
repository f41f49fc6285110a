// cmd/server/main.go
package main

import (
	"fmt"
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/gio-lom/kalakoba/internal/config"
	"github.com/gio-lom/kalakoba/internal/handlers"
	"github.com/gio-lom/kalakoba/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	srv := handlers.NewGameServer()

	mux := http.NewServeMux()

	mux.Handle("/api/rooms", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListRoomsHandler(srv),
	)))

	mux.Handle("/ws", http.HandlerFunc(
		handlers.WSHandler(logger, srv),
	))

	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
