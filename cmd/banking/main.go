package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	accountapp "github.com/wyfcoding/digitalbank/internal/account/application"
	accountdomain "github.com/wyfcoding/digitalbank/internal/account/domain"
	accountmysql "github.com/wyfcoding/digitalbank/internal/account/infrastructure/persistence/mysql"
	accounthttp "github.com/wyfcoding/digitalbank/internal/account/interfaces/http"
	beneficiaryapp "github.com/wyfcoding/digitalbank/internal/beneficiary/application"
	beneficiarydomain "github.com/wyfcoding/digitalbank/internal/beneficiary/domain"
	beneficiarymysql "github.com/wyfcoding/digitalbank/internal/beneficiary/infrastructure/persistence/mysql"
	beneficiaryhttp "github.com/wyfcoding/digitalbank/internal/beneficiary/interfaces/http"
	notificationapp "github.com/wyfcoding/digitalbank/internal/notification/application"
	notificationdomain "github.com/wyfcoding/digitalbank/internal/notification/domain"
	"github.com/wyfcoding/digitalbank/internal/notification/infrastructure/sender"
	otpapp "github.com/wyfcoding/digitalbank/internal/otp/application"
	otpdomain "github.com/wyfcoding/digitalbank/internal/otp/domain"
	otpmysql "github.com/wyfcoding/digitalbank/internal/otp/infrastructure/persistence/mysql"
	otphttp "github.com/wyfcoding/digitalbank/internal/otp/interfaces/http"
	txapp "github.com/wyfcoding/digitalbank/internal/transaction/application"
	txdomain "github.com/wyfcoding/digitalbank/internal/transaction/domain"
	txadapter "github.com/wyfcoding/digitalbank/internal/transaction/infrastructure/adapter"
	txmysql "github.com/wyfcoding/digitalbank/internal/transaction/infrastructure/persistence/mysql"
	txhttp "github.com/wyfcoding/digitalbank/internal/transaction/interfaces/http"
	transferapp "github.com/wyfcoding/digitalbank/internal/transfer/application"
	transferdomain "github.com/wyfcoding/digitalbank/internal/transfer/domain"
	transferadapter "github.com/wyfcoding/digitalbank/internal/transfer/infrastructure/adapter"
	transfermysql "github.com/wyfcoding/digitalbank/internal/transfer/infrastructure/persistence/mysql"
	transferhttp "github.com/wyfcoding/digitalbank/internal/transfer/interfaces/http"
	"github.com/wyfcoding/digitalbank/pkg/cache"
	"github.com/wyfcoding/digitalbank/pkg/config"
	"github.com/wyfcoding/digitalbank/pkg/db"
	"github.com/wyfcoding/digitalbank/pkg/logger"
	"github.com/wyfcoding/digitalbank/pkg/metrics"
	"github.com/wyfcoding/digitalbank/pkg/middleware"
	"github.com/wyfcoding/digitalbank/pkg/mq"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/banking/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}

	// 2. Logger
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Metrics
	m := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		go m.ExposeHTTP(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// 4. Database
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "connect database failed", "error", err)
	}
	defer database.Close()

	if cfg.Environment != "prod" {
		if err := database.AutoMigrate(
			&accountdomain.Account{},
			&accountdomain.LedgerEntry{},
			&txdomain.Transaction{},
			&otpdomain.OtpRequest{},
			&transferdomain.Transfer{},
			&beneficiarydomain.Beneficiary{},
		); err != nil {
			logger.Fatal(ctx, "migrate database failed", "error", err)
		}
	}

	// 5. Redis
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "connect redis failed", "error", err)
	}
	defer redisCache.Close()

	// 6. Notification channel: Kafka 不可用时退化为日志投递
	var notifySender notificationdomain.Sender
	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	if err != nil {
		logger.Warn(ctx, "kafka unavailable, falling back to log sender", "error", err)
		notifySender = sender.NewLogSender()
	} else {
		defer producer.Close()
		notifySender = sender.NewKafkaSender(producer, cfg.Kafka.NotificationTopic)
	}
	dispatcher := notificationapp.NewDispatcher(notifySender, m, log)

	// 7. Repositories
	accountRepo := accountmysql.NewAccountRepository(database.DB)
	txRepo := txmysql.NewTransactionRepository(database.DB)
	otpRepo := otpmysql.NewOtpRepository(database.DB)
	transferRepo := transfermysql.NewTransferRepository(database.DB)
	beneficiaryRepo := beneficiarymysql.NewBeneficiaryRepository(database.DB)

	// 8. Application services
	otpService := otpapp.NewOtpService(otpRepo, redisCache, dispatcher, m, log, otpapp.Config{
		CodeLength:         cfg.OTP.CodeLength,
		TTL:                cfg.OTP.TTL(),
		MaxIssuesPerWindow: cfg.OTP.MaxIssuesPerWindow,
		ThrottleWindow:     cfg.OTP.ThrottleWindow(),
	})
	accountService := accountapp.NewAccountService(accountRepo, otpService, log)

	ledger := txadapter.NewLedgerAdapter(accountRepo)
	engine := txapp.NewSettlementEngine(txRepo, ledger, m, log, cfg.Settlement.MaxRetries)
	txService := txapp.NewTransactionService(txRepo, accountRepo, engine, dispatcher, log)

	beneficiaryService := beneficiaryapp.NewBeneficiaryService(beneficiaryRepo, log)

	feeRate, err := decimal.NewFromString(cfg.Transfer.FeeRate)
	if err != nil {
		logger.Fatal(ctx, "invalid transfer fee_rate", "value", cfg.Transfer.FeeRate)
	}
	minAmount, err := decimal.NewFromString(cfg.Transfer.MinAmount)
	if err != nil {
		logger.Fatal(ctx, "invalid transfer min_amount", "value", cfg.Transfer.MinAmount)
	}
	orchestrator := transferapp.NewTransferOrchestrator(
		transferRepo,
		txRepo,
		accountRepo,
		otpService,
		engine,
		transferadapter.NewBeneficiaryAdapter(beneficiaryService),
		dispatcher,
		m,
		log,
		feeRate,
		minAmount,
	)

	// 9. Background jobs
	reconciliation := txapp.NewReconciliationJob(
		txRepo, ledger, m, log,
		cfg.Settlement.SweepInterval(), cfg.Settlement.PendingTimeout(),
	)
	go reconciliation.Start(ctx)

	transferReconciliation := transferapp.NewReconciliationJob(
		transferRepo, txRepo, m, log,
		cfg.Settlement.SweepInterval(), cfg.Settlement.PendingTimeout(),
	)
	go transferReconciliation.Start(ctx)

	// 10. HTTP server
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Logging(), middleware.Recovery(), middleware.Metrics(m))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName, "version": cfg.Version})
	})

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.Auth.JWTSecret))
	accounthttp.NewAccountHandler(accountService).RegisterRoutes(api)
	txhttp.NewTransactionHandler(txService).RegisterRoutes(api)
	otphttp.NewOtpHandler(otpService).RegisterRoutes(api)
	transferhttp.NewTransferHandler(orchestrator).RegisterRoutes(api)
	beneficiaryhttp.NewBeneficiaryHandler(beneficiaryService).RegisterRoutes(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "http server started", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(context.Background(), "server exited with error", "error", err)
	}
	logger.Info(context.Background(), "server exiting")
}
