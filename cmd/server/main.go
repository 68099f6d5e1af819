package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"

	"github.com/pagecrop/pagecrop/backend-go/internal/auth"
	"github.com/pagecrop/pagecrop/backend-go/internal/collab"
	"github.com/pagecrop/pagecrop/backend-go/internal/config"
	"github.com/pagecrop/pagecrop/backend-go/internal/db"
	"github.com/pagecrop/pagecrop/backend-go/internal/db/dbgen"
	"github.com/pagecrop/pagecrop/backend-go/internal/document"
	mw "github.com/pagecrop/pagecrop/backend-go/internal/middleware"
	"github.com/pagecrop/pagecrop/backend-go/internal/scan"
	"github.com/pagecrop/pagecrop/backend-go/internal/typeid"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	queries := dbgen.New(pool)
	engine := cfg.Engine()

	authService := auth.NewService(queries, cfg.JWTSecret, auth.Options{TokenTTL: cfg.TokenTTL})
	authHandler := auth.NewHandler(authService)

	scanService := scan.NewService(pool)
	files := scan.NewFileFetcher(cfg.ScanDir)
	scanHandler := scan.NewHandler(scanService, files, engine, cfg.WebURL())

	// Rooms load a scan when its first operator joins and write pages
	// back on a timer, when the room empties and on shutdown.
	docLoader := func(ctx context.Context, scanID string) (*document.ScanDocument, error) {
		sc, err := scanService.Get(ctx, scanID)
		if err != nil {
			return nil, err
		}
		pages, err := scanService.LoadPages(ctx, scanID)
		if err != nil {
			return nil, err
		}
		return &document.ScanDocument{Scan: *sc, Pages: pages}, nil
	}

	hub := collab.NewHub(docLoader, scanService.PersistPages, engine)
	go hub.Run()
	scanHandler.SetNotifier(hub)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.AllowedOrigins))

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Scan images are served by id; ids are unguessable typeids.
	r.PathPrefix("/scans/files/").Handler(scanHandler.Serve()).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")

	api.HandleFunc("/scans", scanHandler.List).Methods("GET")
	api.HandleFunc("/scans", scanHandler.Upload).Methods("POST")
	api.HandleFunc("/scans/{scanId}", scanHandler.Get).Methods("GET")
	api.HandleFunc("/scans/{scanId}", scanHandler.Delete).Methods("DELETE")
	api.HandleFunc("/scans/{scanId}/pages", scanHandler.GetPages).Methods("GET")
	api.HandleFunc("/scans/{scanId}/pages", scanHandler.PutPages).Methods("PUT")
	api.HandleFunc("/scans/{scanId}/pages/{pageId}/edit", scanHandler.Edit).Methods("POST")
	api.HandleFunc("/scans/{scanId}/pages/{pageId}/crop.png", scanHandler.Crop).Methods("GET")
	api.HandleFunc("/scans/{scanId}/preview.png", scanHandler.Preview).Methods("GET")
	api.HandleFunc("/scans/{scanId}/qr.png", scanHandler.QR).Methods("GET")

	// WebSocket endpoint
	originPatterns := cfg.OriginPatterns()
	r.HandleFunc("/ws/scan/{scanId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, originPatterns)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop hub first to save all dirty rooms
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "public_url", cfg.WebURL(), "scan_dir", files.Dir())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, originPatterns []string) {
	scanID := mux.Vars(r)["scanId"]
	if err := typeid.Validate(scanID, typeid.PrefixScan); err != nil {
		http.Error(w, "invalid scan id", http.StatusBadRequest)
		return
	}

	// Browsers cannot set headers on websocket upgrades, so the token
	// travels as a query parameter.
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	op, err := authSvc.GetOperator(r.Context(), userID)
	if err != nil {
		http.Error(w, "operator not found", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := collab.NewClient(hub, conn, op.ID, op.DisplayName, scanID)
	if err := hub.Join(r.Context(), client); err != nil {
		slog.Warn("join scan room", "scan", scanID, "error", err)
		conn.Close(websocket.StatusPolicyViolation, "scan unavailable")
		return
	}

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
