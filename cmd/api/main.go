package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flashsale/internal/cache"
	"flashsale/internal/config"
	"flashsale/internal/consumer"
	"flashsale/internal/database"
	"flashsale/internal/handler"
	"flashsale/internal/middleware"
	"flashsale/internal/monitor"
	"flashsale/internal/queue"
	appredis "flashsale/internal/redis"
	"flashsale/internal/repository"
	orderservice "flashsale/internal/service/order"
	seckillservice "flashsale/internal/service/seckill"
	shopservice "flashsale/internal/service/shop"
	"flashsale/pkg/idgen"
	"flashsale/pkg/log"
)

func main() {
	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		panic(err)
	}

	if err := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		panic(err)
	}

	loader.Watch(func(updated *config.Config) {
		log.Info("configuration reloaded")
	})

	shutdownTracer, err := monitor.InitTracer(&cfg.Tracing)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	redisClient, err := appredis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	voucherRepo := repository.NewVoucherRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	shopRepo := repository.NewShopRepository(db)

	cacheClient := cache.NewClient(redisClient, cache.Options{
		NullTTL:        cfg.Cache.NullTTL,
		LockTTL:        cfg.Cache.RebuildLockTTL,
		RebuildWorkers: cfg.Cache.RebuildWorkers,
	})
	defer cacheClient.Close()

	var orderQueue queue.OrderQueue
	switch cfg.Queue.Driver {
	case "memory":
		orderQueue = queue.NewMemoryQueue(cfg.Queue.BufferSize, cfg.Queue.BlockTime)
	default:
		orderQueue, err = queue.NewStreamQueue(redisClient,
			cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.Consumer, cfg.Queue.BlockTime)
		if err != nil {
			log.Fatalf("failed to create stream queue: %v", err)
		}
	}
	defer orderQueue.Close()

	prefilter, err := seckillservice.NewPrefilter(cfg.Seckill.SoldOutTTL)
	if err != nil {
		log.Fatalf("failed to create prefilter: %v", err)
	}
	defer prefilter.Close()

	seckillSvc := seckillservice.NewService(
		voucherRepo, cacheClient, appredis.NewAdmitter(redisClient),
		idgen.NewGenerator(redisClient), orderQueue, prefilter,
		cfg.Cache.EntityTTL)
	orderSvc := orderservice.NewService(db, orderRepo, voucherRepo)
	shopSvc := shopservice.NewService(shopRepo, cacheClient, cfg.Cache.LogicalTTL)

	if cfg.Seckill.PrewarmOnStart {
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := seckillSvc.PrewarmAll(warmCtx); err != nil {
			log.WithError(err).Warn("campaign prewarm incomplete")
		}
		warmCancel()
	}

	orderConsumer := consumer.NewOrderConsumer(orderQueue, orderSvc, redisClient, cfg.Seckill.OrderLockTTL)
	orderConsumer.Start()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.Logger(), middleware.CORS())
	if cfg.Metrics.Enabled {
		router.Use(monitor.HTTPMetrics())
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	limiter := middleware.NewRateLimiter(100, 200)

	seckillHandler := handler.NewSeckillHandler(seckillSvc)
	orderHandler := handler.NewOrderHandler(orderSvc)
	shopHandler := handler.NewShopHandler(shopSvc)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/voucher/:id/seckill", limiter.Handler(), seckillHandler.Seckill)
		v1.POST("/voucher/:id/prewarm", seckillHandler.Prewarm)
		v1.GET("/order/:id", orderHandler.GetOrder)
		v1.GET("/order/user/:userId", orderHandler.ListUserOrders)
		v1.GET("/shop/:id", shopHandler.GetShop)
		v1.PUT("/shop", shopHandler.UpdateShop)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("server shutdown failed: %v", err)
	}
	orderConsumer.Stop()
	if err := shutdownTracer(ctx); err != nil {
		log.Errorf("tracer shutdown failed: %v", err)
	}

	log.Info("server stopped")
}
