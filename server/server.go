package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"musaix/cache"
	"musaix/config"
	"musaix/core/analysis"
	"musaix/core/auth"
	"musaix/core/dispatch"
	"musaix/core/notify"
	"musaix/core/search"
	"musaix/core/upload"
	"musaix/db"
	"musaix/logger"
	"musaix/model"
	"musaix/repository"
	"musaix/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFilePath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if err := storage.InitMinio(cfg); err != nil {
		logger.Fatal("Failed to initialize MinIO", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseDB()

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database with GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database schema", logger.ErrorField(err))
	}
	if err := db.AutoMigrateModels(&model.User{}); err != nil {
		logger.Fatal("Failed to migrate models", logger.ErrorField(err))
	}

	auth.InitJWT(cfg.JWTSecret, cfg.JWTExpiry)

	analysisRepo := repository.NewPgAnalysisRepository()
	fileRepo := repository.NewPgAudioFileRepository()
	usageRepo := repository.NewPgUsageLogRepository()
	userRepo := repository.NewGormUserRepository(db.GormDB)
	analysisCache := cache.NewAnalysisCache()

	hub := notify.NewHub()
	go hub.Run()
	defer hub.Stop()

	bridgeCtx, cancelBridge := context.WithCancel(context.Background())
	defer cancelBridge()
	bridge := notify.NewRedisBridge(db.RedisClient, hub)
	go bridge.Run(bridgeCtx)

	deadLetter := dispatch.NewRedisDeadLetter(db.RedisClient)
	dispatcher := dispatch.NewDispatcher(
		cfg.AnalysisFunctionURL, cfg.WebhookSecret, cfg.AnalysisTimeout,
		cfg.DispatchQueueSize, cfg.DispatchRetries, cfg.DispatchBackoff, deadLetter)
	dispatcher.Start(2)
	defer dispatcher.Stop()

	uploadManager := upload.NewManager()
	go uploadManager.Run()
	defer uploadManager.Stop()

	ingestSvc := analysis.NewIngestService(analysisRepo, usageRepo, dispatcher, cfg.AudioBucket)
	resultSvc := analysis.NewResultService(analysisRepo, fileRepo, usageRepo, hub, analysisCache)
	searchSvc := search.NewService(analysisRepo)

	apiHandler := NewAPIHandler(cfg, ingestSvc, resultSvc, searchSvc, uploadManager,
		hub, analysisRepo, fileRepo, userRepo, analysisCache)

	router := mux.NewRouter()

	// CORS middleware
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Pipeline endpoints
	router.HandleFunc("/api/storage/events", apiHandler.StorageEventHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/analysis/callback", apiHandler.AnalysisCallbackHandler).Methods(http.MethodPost)

	// Authenticated API endpoints
	router.HandleFunc("/api/upload", apiHandler.AuthMiddleware(apiHandler.UploadAudioHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/uploads", apiHandler.AuthMiddleware(apiHandler.ListUploadsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/uploads", apiHandler.AuthMiddleware(apiHandler.ClearUploadsHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/files", apiHandler.AuthMiddleware(apiHandler.ListFilesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/analyses", apiHandler.AuthMiddleware(apiHandler.ListAnalysesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/search/similar", apiHandler.AuthMiddleware(apiHandler.SimilaritySearchHandler)).Methods(http.MethodPost)

	// Result viewer endpoints
	router.HandleFunc("/api/analysis/{id}", apiHandler.GetAnalysisHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws/analysis/{id}", apiHandler.AnalysisWSHandler).Methods(http.MethodGet)

	// Auth endpoints
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	// Health check
	router.HandleFunc("/api/health", apiHandler.HealthHandler).Methods(http.MethodGet)

	server.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ServerAddr))
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
