package rewards

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SakuraBurst/rewards/internal/pkg/logger"
	"github.com/SakuraBurst/rewards/internal/rewards/config"
	"github.com/SakuraBurst/rewards/internal/rewards/controller"
	"github.com/SakuraBurst/rewards/internal/rewards/database"
	"github.com/SakuraBurst/rewards/internal/rewards/flow"
	"github.com/SakuraBurst/rewards/internal/rewards/querycache"
	"github.com/SakuraBurst/rewards/internal/rewards/router"
	"github.com/SakuraBurst/rewards/internal/rewards/scheduler"
	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type App struct {
	router    *router.HttpRouter
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
}

func (a *App) Run() error {
	sisChan := make(chan os.Signal, 1)
	a.scheduler.Start()
	go func() {
		if err := a.router.Run(); err != nil {
			a.logger.Error("router.Run failed: ", zap.Error(err))
			sisChan <- os.Interrupt
		}
	}()
	return a.gracefulShutdown(sisChan)
}

func (a *App) gracefulShutdown(sisChan chan os.Signal) error {
	signal.Notify(sisChan, os.Interrupt, syscall.SIGTERM)
	<-sisChan
	if err := a.scheduler.Shutdown(); err != nil {
		a.logger.Error("scheduler.Shutdown failed: ", zap.Error(err))
	}
	if err := a.router.Close(); err != nil {
		a.logger.Error("router.Close failed: ", zap.Error(err))
	}
	return a.logger.Sync()
}

func newCacheStore(cfg *config.Config) (querycache.Store, error) {
	if cfg.Cache.Backend != "redis" {
		return querycache.NewMemoryStore(), nil
	}
	rc := redis.NewClient(&redis.Options{
		Addr:         cfg.Cache.RedisAddr,
		Password:     cfg.Cache.RedisPassword,
		DB:           cfg.Cache.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, errors.Wrap(err, "redis ping failed: ")
	}
	return querycache.NewRedisStore(rc, cfg.Cache.RedisTTL), nil
}

func NewApp(cfg *config.Config) *App {
	log, err := logger.InitLogger(logger.Options{
		Level:      cfg.Log.Level,
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		panic(err)
	}
	db, err := database.NewDB(cfg, log)
	if err != nil {
		panic(err)
	}
	store, err := newCacheStore(cfg)
	if err != nil {
		panic(err)
	}
	clock := clockwork.NewRealClock()
	cache := querycache.New(store, clock, cfg.Cache.MaxAge, log)
	c, err := controller.NewController(cfg, db, db, db, db, cache, clock, log, func() error {
		db.Close()
		return nil
	})
	if err != nil {
		panic(err)
	}
	registry := flow.NewRegistry(c, clock, cfg.FlowIdleTTL, log)
	loc, err := cfg.Location()
	if err != nil {
		panic(err)
	}
	sched, err := scheduler.New(cache, registry, clock, loc, log)
	if err != nil {
		panic(err)
	}
	r := router.CreateRouter(c, registry, cfg, log)
	return &App{
		router:    r,
		scheduler: sched,
		logger:    log,
	}
}
