// @title           Field Job Backend API
// @version         1.0.0
// @description     Back office API for field installation jobs: job list, completion capture (photos, video, signature, rating), sequential evidence upload to Supabase Storage and derived order status.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldjob-backend/internal/capture"
	"fieldjob-backend/internal/completion"
	"fieldjob-backend/internal/config"
	"fieldjob-backend/internal/database"
	"fieldjob-backend/internal/handlers"
	"fieldjob-backend/internal/jobsync"
	"fieldjob-backend/internal/logging"
	"fieldjob-backend/internal/media"
	"fieldjob-backend/internal/middleware"
	"fieldjob-backend/internal/models"
	"fieldjob-backend/internal/supabase"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	pollInterval    = 15 * time.Second
	signalDebounce  = 500 * time.Millisecond
	shutdownTimeout = 10 * time.Second

	sessionSweepInterval = time.Minute
)

// store is what the server needs from persistence; both the direct SQL
// client and the PostgREST client provide it.
type store interface {
	completion.Store
	ListJobs(ctx context.Context) ([]models.JobView, error)
	ListOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logging.Init(cfg.LogLevel)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage client: %v", err)
	}

	var (
		db   store
		feed jobsync.Subscriber
	)
	if cfg.DatabaseURL != "" {
		dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
		if err != nil {
			logrus.Fatalf("Failed to initialize database client: %v", err)
		}
		defer dbClient.Close()

		migrator := database.NewMigratorWithDB(dbClient.DB())
		if applied, err := migrator.Run(ctx); err != nil {
			logrus.WithError(err).Warn("Migration failed")
		} else {
			logrus.WithField("applied", applied).Info("Migrations completed successfully")
		}

		db = dbClient
		feed = supabase.NewChangeFeed(cfg.DatabaseURL)
	} else {
		logrus.Warn("DATABASE_URL not set: using PostgREST, migrations skipped, job changes polled")
		db = supabase.NewRESTClient(supabaseClient)
		feed = supabase.NewPollFeed(supabaseClient, pollInterval)
	}

	stager, err := media.NewStager(cfg.StagingDir, cfg.MaxUploadMB<<20)
	if err != nil {
		logrus.Fatalf("Failed to initialize staging directory: %v", err)
	}

	camera := capture.Exclusive(&capture.FFmpegDevice{
		BackDevice:  cfg.CameraBackDevice,
		FrontDevice: cfg.CameraFrontDevice,
		AudioDevice: cfg.AudioDevice,
	})

	completionService := completion.NewService(db, storageClient)
	defer completionService.Sessions().CloseAll()
	go completionService.Sessions().ExpireIdle(ctx, cfg.SessionIdleTTL, sessionSweepInterval)

	jobList := jobsync.New(db, feed)
	if err := jobList.Start(ctx); err != nil {
		logrus.WithError(err).Warn("Job list will only refresh on demand")
	}
	defer jobList.Close()
	if cfg.SyncSignalPath != "" {
		if err := jobList.WatchSignal(cfg.SyncSignalPath, signalDebounce); err != nil {
			logrus.WithError(err).Warn("Failed to watch sync signal file")
		}
	}

	router := setupRouter(cfg, routes{
		jobs:       handlers.NewJobsHandler(jobList),
		orders:     handlers.NewOrdersHandler(db),
		completion: handlers.NewCompletionHandler(completionService, db, stager, cfg.GeoTimeout),
		video:      handlers.NewVideoHandler(completionService, camera, stager, cfg.GeoTimeout),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logrus.Info("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("Server stopped with error")
	}
}

type routes struct {
	jobs       *handlers.JobsHandler
	orders     *handlers.OrdersHandler
	completion *handlers.CompletionHandler
	video      *handlers.VideoHandler
}

func setupRouter(cfg *config.Config, r routes) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = 32 << 20

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	// Jobs
	api.GET("/jobs", r.jobs.List)
	api.POST("/jobs/refresh", r.jobs.Refresh)
	api.GET("/jobs/:job_id/completion", r.completion.Get)
	api.POST("/jobs/:job_id/completion/sessions", r.completion.OpenSession)
	api.POST("/jobs/:job_id/completion/retry-status", r.completion.RetryStatus)

	// Completion sessions
	sessions := api.Group("/completion/sessions/:session_id")
	sessions.GET("", r.completion.GetSession)
	sessions.DELETE("", r.completion.CloseSession)
	sessions.POST("/media", r.completion.AddMedia)
	sessions.PATCH("/media/:media_id", r.completion.AnnotateMedia)
	sessions.DELETE("/media/:media_id", r.completion.RemoveMedia)
	sessions.GET("/media/:media_id/preview", r.completion.MediaPreview)
	sessions.PUT("/signature", r.completion.PutSignature)
	sessions.POST("/submit", r.completion.Submit)

	// Video capture
	sessions.POST("/video", r.video.Open)
	sessions.GET("/video", r.video.Get)
	sessions.DELETE("/video", r.video.Close)
	sessions.GET("/video/preview", r.video.Preview)
	sessions.POST("/video/record", r.video.Record)
	sessions.POST("/video/stop", r.video.Stop)
	sessions.POST("/video/retake", r.video.Retake)
	sessions.POST("/video/switch", r.video.Switch)
	sessions.POST("/video/confirm", r.video.Confirm)

	// Orders
	api.GET("/orders/:order_id/status", r.orders.Status)

	return router
}
