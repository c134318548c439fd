package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cabinsite/admin"
	"cabinsite/analytics"
	"cabinsite/cabins"
	"cabinsite/cache"
	"cabinsite/common"
	"cabinsite/database"
	"cabinsite/email"
	"cabinsite/reviews"
	"cabinsite/settings"
	"cabinsite/site"
	"cabinsite/upload"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := common.NewLogger(cfg.LogLevel, cfg.LogPath)
	defer func() { _ = log.Sync() }()

	db, err := common.ConnectDb(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	seed := database.Seed{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		AdminPath:     cfg.AdminPath,
	}
	if err := database.RunMigrations(db, seed, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	ctx := context.Background()
	identity := admin.NewIdentityService(db)
	if err := identity.Load(ctx); err != nil {
		log.Fatal("failed to load admin identity", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(common.RequestLogger(log))
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions("cabins-session", store))

	router.SetFuncMap(common.TemplateFuncs())
	router.LoadHTMLGlob("*/views/*.html")

	pages, err := cache.New(cfg.PageCacheDir, cfg.PageCacheTTL)
	if err != nil {
		log.Fatal("failed to init page cache", zap.Error(err))
	}
	invalidate := cache.InvalidateOnWrite(pages, log)

	storage, err := newStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to init upload storage", zap.Error(err))
	}
	uploads := upload.NewService(storage, cfg.UploadMaxBytes)

	drafts, err := newDrafts(ctx, cfg)
	if err != nil {
		log.Fatal("failed to init draft store", zap.Error(err))
	}

	var notifier reviews.Notifier
	if mailer := email.NewEmailService(cfg.SMTP); mailer.Enabled() {
		notifier = mailer
	} else {
		log.Info("SMTP not configured, review notices disabled")
	}

	cabinService := cabins.NewService(db)
	settingsService := settings.NewService(db)
	reviewService := reviews.NewService(db)
	reviewsModule := reviews.NewReviewsModule(reviewService, notifier, cfg.NotifyEmail, log)
	analyticsModule := analytics.NewAnalyticsModule(db, log)

	api := router.Group("/api", invalidate)
	cabins.NewCabinsModule(cabinService, log).RegisterRoutes(api, admin.RequireAdmin)
	settings.NewSettingsModule(settingsService, log).RegisterRoutes(api, admin.RequireAdmin)
	admin.NewAdminModule(identity, drafts, log).RegisterRoutes(api, admin.RequireAdmin)
	upload.NewUploadModule(uploads, log).RegisterRoutes(api, admin.RequireAdmin)
	reviewsModule.RegisterRoutes(api, admin.RequireAdmin)

	admin.NewConsoleModule(admin.ConsoleDeps{
		Identity: identity,
		Cabins:   cabinService,
		Settings: settingsService,
		Reviews:  reviewService,
		Uploads:  uploads,
		Stats:    analyticsModule,
		Drafts:   drafts,
		Log:      log,
	}).RegisterRoutes(router, invalidate)

	siteModule := site.NewSiteModule(site.SiteDeps{
		Cabins:    cabinService,
		Settings:  settingsService,
		Reviews:   reviewService,
		Submitter: reviewsModule,
		Visits:    analyticsModule,
		Domain:    cfg.Domain,
		Log:       log,
	})
	siteModule.RegisterRoutes(router, cache.Pages(pages, log))

	if cfg.UploadBackend == "local" {
		router.Static("/uploads", cfg.UploadDir)
	}
	router.Static("/static", cfg.FrontendDir)

	indexFile := filepath.Join(cfg.FrontendDir, "index.html")
	router.NoRoute(func(c *gin.Context) {
		if common.IsAPIRequest(c) {
			common.NotFound(c, "not found")
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		if info, err := os.Stat(indexFile); err == nil && !info.IsDir() {
			c.File(indexFile)
			return
		}
		siteModule.Home(c)
	})

	stopSweeper := startCacheSweeper(pages, cfg.PageCacheTTL, log)
	defer stopSweeper()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           common.PathRewriter(router, identity.CurrentPath, admin.ConsolePrefix),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server exited")
}

// corsConfig allows any origin when none are configured.
func corsConfig(origins []string) cors.Config {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			if len(allowed) == 0 {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
		MaxAge: 12 * time.Hour,
	}
}

func newStorage(ctx context.Context, cfg *common.Config, log *zap.Logger) (upload.FileStorage, error) {
	if cfg.UploadBackend == "minio" {
		storage, err := upload.NewMinioStorage(ctx, cfg.Minio, log)
		if err != nil {
			return nil, err
		}
		return storage, nil
	}
	storage, err := upload.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	return storage, nil
}

func newDrafts(ctx context.Context, cfg *common.Config) (admin.DraftStore, error) {
	if cfg.RedisURL != "" {
		drafts, err := admin.NewRedisDrafts(ctx, cfg.RedisURL, admin.DraftTTL)
		if err != nil {
			return nil, err
		}
		return drafts, nil
	}
	return admin.NewMemoryDrafts(admin.DraftTTL), nil
}

// startCacheSweeper removes stale page files once per TTL.
func startCacheSweeper(pages *cache.PageCache, ttl time.Duration, log *zap.Logger) func() {
	if pages == nil {
		return func() {}
	}
	ticker := time.NewTicker(ttl)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := pages.ClearExpired(); err != nil {
					log.Warn("failed to sweep page cache", zap.Error(err))
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
