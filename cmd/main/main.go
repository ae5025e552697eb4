package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mindroute-ai/mindroute/src/adapt"
	"github.com/mindroute-ai/mindroute/src/cache"
	"github.com/mindroute-ai/mindroute/src/classifier"
	"github.com/mindroute-ai/mindroute/src/config"
	"github.com/mindroute-ai/mindroute/src/handlers"
	"github.com/mindroute-ai/mindroute/src/logx"
	"github.com/mindroute-ai/mindroute/src/middleware"
	"github.com/mindroute-ai/mindroute/src/models"
	"github.com/mindroute-ai/mindroute/src/outcome"
	"github.com/mindroute-ai/mindroute/src/pipeline"
	"github.com/mindroute-ai/mindroute/src/policy"
	"github.com/mindroute-ai/mindroute/src/providers"
	"github.com/mindroute-ai/mindroute/src/safety"
	"github.com/mindroute-ai/mindroute/src/selector"
	"github.com/mindroute-ai/mindroute/src/store"
	"github.com/mindroute-ai/mindroute/src/templates"
)

func main() {
	if err := godotenv.Load(); err == nil {
		logx.Info().Msg("loaded .env file")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to load config")
	}
	logx.Init(cfg.Environment)
	logx.Info().Msg("config loaded")

	// Safety pattern table: versioned, deploy-time only.
	table := safety.DefaultTable()
	if cfg.Safety.Path != "" {
		if loaded, err := safety.LoadTable(cfg.Safety.Path); err == nil {
			table = loaded
		} else {
			logx.Warn().Err(err).Msg("safety table not loadable, using built-in patterns")
		}
	}
	scanner := safety.NewScanner(table)
	logx.Info().Int("version", scanner.TableVersion()).Msg("safety scanner ready")

	templateTable := &templates.Table{Version: 0}
	if cfg.Templates.Path != "" {
		if loaded, err := templates.LoadTable(cfg.Templates.Path); err == nil {
			templateTable = loaded
		} else {
			logx.Warn().Err(err).Msg("template table not loadable, template stage will not match")
		}
	}
	matcher := templates.NewMatcher(templateTable)
	logx.Info().Int("version", matcher.Version()).Msg("template matcher ready")

	db, err := store.Open(cfg.Store.Path, cfg.Store.Timeout)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to open store db")
	}
	defer db.Close()

	persistentTier, err := cache.NewSQLiteCache(db)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialize persistent cache tier")
	}

	outcomeLog, err := outcome.NewLog(db)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialize outcome log")
	}
	defer outcomeLog.Close()

	tiers := []models.CacheTierStore{cache.NewLocalCache(cfg.Cache.LocalMaxEntries)}
	sharedTier, err := cache.NewRedisCache(&cfg.Redis)
	if err != nil {
		logx.Warn().Err(err).Msg("redis unreachable at startup, shared tier disabled")
	} else {
		tiers = append(tiers, sharedTier)
	}
	tiers = append(tiers, persistentTier)

	hierarchy := cache.NewHierarchy(cfg.Cache.TierTimeout, cfg.Cache.IncludeProvider, tiers...)
	defer hierarchy.Close()
	logx.Info().Int("tiers", len(tiers)).Msg("cache hierarchy ready")

	clients, err := providers.NewAll(cfg.Providers)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build provider adapters")
	}
	sel := selector.New(cfg.Providers, clients, cfg.Breaker)
	for _, p := range cfg.Providers {
		logx.Info().Str("provider", p.ID).Str("model", p.Model).Int("rank", p.BaseRank).Msg("provider configured")
	}

	policies := policy.NewStore(initialSnapshot(cfg))
	logx.Info().Float64("trivial_max", cfg.Classifier.TrivialMax).Msg("policy store seeded")

	// Edits to the config file republish the tunables; the safety table
	// and the provider set still need a restart.
	config.OnChange(func(next *config.Config) {
		published := policies.Publish(initialSnapshot(next))
		logx.Info().Int64("version", published.Version).Msg("config change published new policy snapshot")
	})

	pipe := pipeline.New(scanner, classifier.New(), matcher, hierarchy, sel, policies, outcomeLog)

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go adapt.NewLoop(cfg.Adaptation, outcomeLog, sel, policies).Run(loopCtx)
	logx.Info().Dur("interval", cfg.Adaptation.Interval).Msg("adaptation loop started")

	if strings.EqualFold(cfg.Environment, "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(corsMiddleware())

	routeHandler := handlers.NewRouteHandler(pipe, outcomeLog, policies)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", routeHandler.HealthCheck)
		v1.GET("/policy", routeHandler.GetPolicy)
		v1.POST("/route", routeHandler.HandleRoute)
		v1.POST("/feedback", routeHandler.HandleFeedback)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}()

	logx.Info().Str("port", cfg.Server.Port).Msg("routing engine running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logx.Info().Msg("shutting down server")
	stopLoop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logx.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logx.Info().Msg("server exited")
}

func initialSnapshot(cfg *config.Config) *policy.Snapshot {
	sorted := make([]config.ProviderConfig, len(cfg.Providers))
	copy(sorted, cfg.Providers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].BaseRank < sorted[j].BaseRank })

	ranking := make([]string, len(sorted))
	for i, p := range sorted {
		ranking[i] = p.ID
	}

	return &policy.Snapshot{
		TrivialMax:      cfg.Classifier.TrivialMax,
		ModerateMax:     cfg.Classifier.ModerateMax,
		ProviderRanking: ranking,
		TierTTLs: map[models.Bucket]time.Duration{
			models.BucketTrivial:  cfg.Cache.TrivialTTL,
			models.BucketModerate: cfg.Cache.ModerateTTL,
			models.BucketComplex:  cfg.Cache.ComplexTTL,
		},
		TemplateConfidenceFloor: cfg.Templates.ConfidenceFloor,
	}
}

func corsMiddleware() gin.HandlerFunc {
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	var allowedOrigins []string

	if allowedOriginsEnv != "" {
		allowedOrigins = strings.Split(allowedOriginsEnv, ",")
		for i := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
		}
	} else {
		allowedOrigins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Allow requests without Origin header (health checks, curl)
		if origin == "" {
			c.Next()
			return
		}

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}

		if !allowed {
			c.AbortWithStatus(403)
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
