package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bookshelf-auth/internal/cache"
	"github.com/iliyamo/bookshelf-auth/internal/config"
	"github.com/iliyamo/bookshelf-auth/internal/credential"
	"github.com/iliyamo/bookshelf-auth/internal/database"
	"github.com/iliyamo/bookshelf-auth/internal/handler"
	"github.com/iliyamo/bookshelf-auth/internal/logging"
	"github.com/iliyamo/bookshelf-auth/internal/middleware"
	"github.com/iliyamo/bookshelf-auth/internal/permission"
	"github.com/iliyamo/bookshelf-auth/internal/queue"
	"github.com/iliyamo/bookshelf-auth/internal/ratelimit"
	"github.com/iliyamo/bookshelf-auth/internal/repository"
	"github.com/iliyamo/bookshelf-auth/internal/router"
	"github.com/iliyamo/bookshelf-auth/internal/service"
	"github.com/iliyamo/bookshelf-auth/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logging.New(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("mysql: connect")
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("mysql: migrate")
		}
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.WithError(err).Fatal("redis: connect")
	}
	defer rdb.Close()

	limitCfg := config.LoadLoginLimitConfig()
	cacheCfg := config.LoadCacheConfig()

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	shared := cache.New(rdb, "")
	tokens := token.NewService(rdb, cfg.JWTSecret, time.Duration(cfg.TokenTTLMin)*time.Minute)

	var events service.Events = queue.Discard{}
	var wg sync.WaitGroup
	if cfg.EventsEnabled {
		events = queue.NewPublisher(cfg.AMQPURL, log)
		consumer := &queue.AuditConsumer{URL: cfg.AMQPURL, Dir: cfg.AuditLogDir, Log: log}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("auth-consumer stopped")
			}
		}()
	}

	auth := service.NewAuthService(service.Deps{
		Credentials: credential.NewStore(users, cfg.BcryptCost, cfg.DefaultRole),
		Tokens:      tokens,
		Limiter:     ratelimit.New(rdb, limitCfg.Prefix),
		Permissions: permission.NewResolver(roles, shared, cacheCfg.PermissionTTL, cfg.SuperRole),
		Resets:      token.NewResetStore(rdb, time.Duration(cfg.ResetTTLMin)*time.Minute),
		Cache:       shared,
		Events:      events,
		Log:         log,
	}, service.Options{
		LoginMaxAttempts: limitCfg.MaxAttempts,
		LoginDecay:       limitCfg.Decay,
		ProfileTTL:       cacheCfg.ProfileTTL,
		AvatarBaseURL:    cfg.AvatarBaseURL,
	})

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(log, cfg.IsProduction())
	e.Use(echomw.RequestID())
	e.Use(logging.RequestLogger(log))
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, map[string]handler.Check{
		"mysql": db.PingContext,
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	router.RegisterAuth(e, handler.NewAuthHandler(auth), tokens)
	router.RegisterBooks(e, handler.NewBookHandler(repository.NewBookRepo(db)),
		middleware.ResponseCache(cacheCfg, rdb, log))

	go func() {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	wg.Wait()
}
