package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soundscape/config"
	"soundscape/db"
	"soundscape/logger"
	"soundscape/model"
	"soundscape/repository"
	"soundscape/storage"

	"github.com/gorilla/mux"
)

// Start initializes dependencies and runs the HTTP server until SIGINT/SIGTERM.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	store := buildStorage(cfg)
	repo := buildRepository(cfg)

	if cfg.RedisEnabled {
		if err := db.ConnectRedis(cfg); err != nil {
			logger.Warn("Redis unavailable, list caching disabled", logger.ErrorField(err))
		} else {
			defer db.CloseRedis()
			logger.Info("Connected to Redis, list caching enabled")
		}
	}

	apiHandler := NewAPIHandler(repo, store, cfg)
	router := NewRouter(apiHandler, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting",
			logger.String("addr", server.Addr),
			logger.String("catalogDriver", cfg.CatalogDriver),
			logger.String("storageClass", store.Status().StorageClass))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}

// buildStorage wires the storage adapter: MinIO with local fallback when
// bucket credentials are configured, plain local disk otherwise.
func buildStorage(cfg *config.Config) storage.Storage {
	local, err := storage.NewLocalStorage(cfg.UploadDir, cfg.PublicBaseURL+"/api/uploads", cfg.QuotaBytes())
	if err != nil {
		logger.Fatal("Failed to initialize local storage", logger.ErrorField(err))
	}

	if !cfg.MinioConfigured() {
		logger.Info("No bucket credentials configured, using local storage only")
		return local
	}

	remote, err := storage.NewMinioStorage(cfg)
	if err != nil {
		logger.Error("MinIO unavailable at startup, using local storage only", logger.ErrorField(err))
		return local
	}

	return storage.NewFallbackStorage(remote, local)
}

// buildRepository selects the catalog driver.
func buildRepository(cfg *config.Config) repository.RecordingRepository {
	switch cfg.CatalogDriver {
	case "mysql":
		if err := db.ConnectGormDB(cfg); err != nil {
			logger.Fatal("Failed to connect to database", logger.ErrorField(err))
		}
		if err := db.AutoMigrateModels(&model.Recording{}); err != nil {
			logger.Fatal("Failed to migrate database", logger.ErrorField(err))
		}
		return repository.NewGormRecordingRepository(db.GormDB)
	default:
		logger.Info("Using in-memory catalog, recordings will not survive a restart")
		return repository.NewMemoryRecordingRepository()
	}
}

// NewRouter builds the full route table.
func NewRouter(h *APIHandler, cfg *config.Config) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.HandleFunc("/api/health", h.HealthHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/recordings", h.ListRecordingsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/recordings", h.UploadRecordingHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/recordings/{id}", h.AdminAuthMiddleware(h.DeleteRecordingHandler)).Methods(http.MethodDelete)

	// Audio bytes are reachable under both historical paths.
	router.HandleFunc("/api/recordings/{filename}", h.ServeAudioHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/uploads/{filename}", h.ServeAudioHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/admin/login", h.AdminLoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/storage-usage", h.AdminAuthMiddleware(h.StorageUsageHandler)).Methods(http.MethodGet)

	// Web map client.
	router.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.WebAppDir)))

	return router
}

// corsMiddleware applies the configured origin allowlist. "*" allows any
// origin.
func corsMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" {
				for _, o := range allowedOrigins {
					if o == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Set("Vary", "Origin")
						break
					}
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
