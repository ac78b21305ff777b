// Package main is the entry point for the wolfden game server. It only
// handles dependency injection and server initialization. NO business
// logic belongs here.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfden-games/wolfden-server/internal/domain/role"
	"github.com/wolfden-games/wolfden-server/internal/engine"
	"github.com/wolfden-games/wolfden-server/internal/events"
	"github.com/wolfden-games/wolfden-server/internal/infra/storage"
	"github.com/wolfden-games/wolfden-server/internal/network"
	"github.com/wolfden-games/wolfden-server/internal/platform/config"
	"github.com/wolfden-games/wolfden-server/internal/platform/logger"
	"github.com/wolfden-games/wolfden-server/internal/platform/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The hosting layer fronts this server; origin checks happen there.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	appLogger := logger.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		appLogger.Error("Failed to load configuration: " + err.Error())
		os.Exit(1)
	}

	appLogger.Info("Initializing SQLite database '" + cfg.DBPath + "'...")
	db, err := storage.InitSQLite(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to initialize SQLite: " + err.Error())
		os.Exit(1)
	}

	archive := storage.NewEventArchive(db)
	eventLog := events.NewEventLog(archive)
	progression := storage.NewProgressionRepo(db)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(appLogger)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog)

	registry := engine.NewRegistry()

	mux := http.NewServeMux()

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		actorID := r.URL.Query().Get("actor_id")
		if actorID == "" {
			http.Error(w, "actor_id is required", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			appLogger.Error("WebSocket upgrade failed: " + err.Error())
			return
		}
		client := network.NewClient(hub, conn, actorID)
		client.Register()
		go client.WritePump()
		go client.ReadPump()
	})

	mux.HandleFunc("/api/game/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Room    string `json:"room"`
			Mode    string `json:"mode"`
			Roles   string `json:"roles"`
			Players []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"players"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		mode := role.Mode(req.Mode)
		if mode == "" {
			mode = role.ModeClassic
		}
		if len(req.Players) < mode.MinPlayers() {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("%s mode needs at least %d players, got %d", mode, mode.MinPlayers(), len(req.Players)))
			return
		}

		// Custom role tokens: unknown ones are echoed back verbatim and the
		// session is never created.
		var requested []role.Role
		if req.Roles != "" {
			var unknown []string
			for _, token := range strings.Split(req.Roles, ",") {
				token = strings.TrimSpace(token)
				if token == "" {
					continue
				}
				r, ok := role.Parse(token)
				if !ok {
					unknown = append(unknown, token)
					continue
				}
				requested = append(requested, r)
			}
			if len(unknown) > 0 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]any{
					"error":          "unrecognized roles",
					"unknown_tokens": unknown,
				})
				return
			}
		}

		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		session := engine.NewSession(req.Room, mode, requested, cfg, hub, appLogger, eventLog, progression, rng)
		for _, p := range req.Players {
			if err := session.Join(engine.Participant{ID: p.ID, Name: p.Name}); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		if err := registry.Register(session); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}

		go func() {
			defer registry.Remove(session.Room)
			session.Run(ctx)
		}()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "session_id": session.ID})
	})

	mux.HandleFunc("/metrics", metrics.Handler())
	mux.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler())

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		appLogger.Info("Server listening on " + cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed: " + err.Error())
			cancel()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = db.Close()
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
