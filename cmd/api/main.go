package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	"storefront/internal/infra/events"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	//.envがなければ環境変数だけで動く
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.GoEnv)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(gormDB, log); err != nil {
			return err
		}
	}

	//冪等結果のキャッシュ（任意）
	var replayCache usecase.ReplayCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		replayCache = cache.NewIdempotencyCache(rdb, cfg.RedisIdempotencyTTL)
		log.Info("idempotency cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	//イベント送信（任意）
	var publisher usecase.EventPublisher = usecase.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicOrders, cfg.KafkaTopicInventory, log)
		defer func() {
			if err := kp.Close(); err != nil {
				log.Warn("close kafka publisher", zap.Error(err))
			}
		}()
		publisher = kp
		log.Info("event publishing enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	//Repository（GORM実装）
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	inventoryLogRepo := infraRepo.NewInventoryLogGormRepository(gormDB)
	idempotencyRepo := infraRepo.NewIdempotencyGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	clock := usecase.SystemClock()

	//Usecase生成
	exec := usecase.NewTxExecutor(txm, usecase.TxExecutorOptions{
		MaxAttempts:    cfg.TxMaxAttempts,
		InitialBackoff: cfg.TxInitialBackoff,
		MaxBackoff:     cfg.TxMaxBackoff,
		Timeout:        cfg.TxTimeout,
	}, log)
	ledger := usecase.NewInventoryLedger(inventoryRepo, clock)
	idem := usecase.NewIdempotencyStore(idempotencyRepo, replayCache, clock, log)
	machine := usecase.NewOrderStateMachine(ledger, clock)

	fulfillmentUC := usecase.NewOrderFulfillmentUsecase(exec, idem, machine, ledger, publisher, clock, log)
	orderUC := usecase.NewOrderUsecase(orderRepo)
	adminOrderUC := usecase.NewAdminOrderUsecase(exec, machine, orderRepo, publisher, clock, log)
	adminInventoryUC := usecase.NewAdminInventoryUsecase(exec, ledger, inventoryLogRepo, publisher, clock, log)
	adminAuditUC := usecase.NewAdminAuditUsecase(auditRepo)

	//Handler生成
	e := server.New(cfg, server.Handlers{
		Health:         handler.NewHealthHandler(sqlDB),
		Orders:         handler.NewOrderHandler(fulfillmentUC, orderUC),
		Inventory:      handler.NewInventoryHandler(fulfillmentUC),
		AdminOrders:    handler.NewAdminOrderHandler(adminOrderUC),
		AdminInventory: handler.NewAdminInventoryHandler(adminInventoryUC),
		AdminAudit:     handler.NewAdminAuditHandler(adminAuditUC),
	}, log)

	return server.Run(ctx, e, cfg.Addr(), log)
}
