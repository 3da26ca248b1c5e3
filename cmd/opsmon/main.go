package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/craftport/opsmon/internal/config"
	"github.com/craftport/opsmon/internal/middleware"
	monapi "github.com/craftport/opsmon/internal/monitoring/api"
	mondb "github.com/craftport/opsmon/internal/monitoring/database"
	"github.com/craftport/opsmon/internal/monitoring/model"
	"github.com/craftport/opsmon/internal/monitoring/probes"
	"github.com/craftport/opsmon/internal/monitoring/service/dispatch"
	"github.com/craftport/opsmon/internal/monitoring/service/matrix"
	"github.com/craftport/opsmon/internal/monitoring/service/registry"
	"github.com/craftport/opsmon/internal/monitoring/service/scheduler"
	"github.com/craftport/opsmon/internal/monitoring/service/state"
)

func main() {
	log.Info().Msg("Starting opsmon api server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// configure log level from config
	switch strings.ToLower(cfg.Logging.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resultTTL := parseDuration(cfg.Monitoring.ResultTTL, 5*time.Minute)
	probeTimeout := parseDuration(cfg.Monitoring.ProbeTimeout, 10*time.Second)
	sendTimeout := parseDuration(cfg.Monitoring.SendTimeout, 15*time.Second)

	// optional Postgres for alert persistence and check history
	var db *mondb.Database
	if d, derr := mondb.New(cfg.Database.DSN()); derr == nil {
		db = d
		defer db.Close()
	} else {
		log.Error().Err(derr).Msg("database init failed; alert persistence and history disabled")
	}

	// Redis-backed state when reachable, in-process state otherwise
	var st state.Store
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	{
		pctx, pcancel := context.WithTimeout(ctx, 3*time.Second)
		if perr := rdb.Ping(pctx).Err(); perr == nil {
			st = state.NewRedisStore(rdb, resultTTL)
		} else {
			log.Error().Err(perr).Msg("redis unreachable; falling back to in-memory state store")
			st = state.NewMemoryStore(resultTTL)
			rdb = nil
		}
		pcancel()
	}

	reg, err := registry.New(probes.DefaultMonitors(probes.Deps{
		DB:        db,
		Redis:     rdb,
		Timeout:   probeTimeout,
		Endpoints: cfg.Monitoring.Endpoints,
	}))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid monitor table")
	}
	log.Info().Strs("services", reg.Names()).Msg("monitor registry built")

	var (
		tenants   scheduler.TenantSource = noTenants{}
		history   scheduler.HistoryAppender
		escalator scheduler.Escalator
		alerts    monapi.AlertStore
	)
	if db != nil {
		tenants = mondb.NewTenantRepo(db)
		history = mondb.NewHistoryRepo(db)
		alertRepo := mondb.NewAlertRepo(db)
		alerts = alertRepo

		var provider dispatch.ChannelConfigProvider
		if cfg.Monitoring.ChannelsFile != "" {
			fp := dispatch.NewFileProvider(cfg.Monitoring.ChannelsFile)
			sendTimeout = fp.SendTimeout(sendTimeout)
			provider = fp
		} else {
			provider = dispatch.StaticProvider{
				{Type: model.ChannelDashboard, Enabled: true},
			}
		}
		escalator = dispatch.NewDispatcher(alertRepo, provider, nil, sendTimeout)
	} else {
		log.Warn().Msg("running without database; escalation disabled")
	}

	sched := scheduler.New(reg, st, history, tenants, escalator).
		WithMaxConcurrent(cfg.Monitoring.MaxConcurrent)

	trigger := cron.New()
	if _, err := trigger.AddFunc(cfg.Monitoring.TriggerSpec, func() {
		sched.RunScheduled(ctx)
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.Monitoring.TriggerSpec).Msg("invalid trigger spec")
	}
	trigger.Start()
	defer trigger.Stop()

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.Authentication)
	monapi.NewApi(router, monapi.Deps{
		Scheduler: sched,
		Matrix:    matrix.NewBuilder(reg, st),
		State:     st,
		Alerts:    alerts,
		Tenants:   tenants,
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{Addr: cfg.Server.BindAddr, Handler: router}
	go func() {
		log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("start opsmon api server failed.")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("opsmon api server exit...")
}

// noTenants is the tenant source used when no database is configured:
// tenant-scoped monitors simply have no tenants to fan out across.
type noTenants struct{}

func (noTenants) ActiveTenants(context.Context) ([]string, error) { return nil, nil }

func parseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}
