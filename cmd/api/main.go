package main

import (
	"os"
	"strings"

	"github.com/nimasrn/cashback-ledger/internal/config"
	"github.com/nimasrn/cashback-ledger/internal/handlers"
	"github.com/nimasrn/cashback-ledger/internal/idempotency"
	"github.com/nimasrn/cashback-ledger/internal/ledger"
	"github.com/nimasrn/cashback-ledger/internal/notification"
	"github.com/nimasrn/cashback-ledger/internal/queue"
	"github.com/nimasrn/cashback-ledger/internal/repository"
	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/nimasrn/cashback-ledger/pkg/prom"
	"github.com/nimasrn/cashback-ledger/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	logger.Info("starting ledger api", "version", version, "commit", commit, "date", date)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go func() {
		prom.ListenAndServer(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
	}()

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Server.Logger = logger.GetLogger()
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.CompressMiddleware(config.Get().HttpCompressionLevel))
	s.Use(xhttp.TimeoutMiddleware(config.Get().HttpRequestTimeout))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" && config.Get().AppDebug {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}
	db.SetTxTimeout(config.Get().LedgerTxTimeout)
	defer db.Close()

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "ledger-api",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	notifyQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:          config.Get().NotifyQueueName,
		ConsumerGroup: config.Get().NotifyQueueConsumerGroup,
		MaxRetries:    config.Get().NotifyQueueMaxRetries,
		MaxLen:        config.Get().NotifyQueueMaxLen,
		EnableDLQ:     config.Get().NotifyQueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating notification queue", "error", err)
		return
	}

	cardRepo := repository.NewCardRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// services
	writer := ledger.NewWriter(db, cardRepo, customerRepo, transactionRepo, ruleRepo,
		ledger.WithNotifier(notification.NewPublisher(notifyQueue)),
		ledger.WithNotifyTimeout(config.Get().LedgerNotifyTimeout),
	)
	paymentGuard := idempotency.NewService(redisAdap, idempotency.PaymentConfig(config.Get().PaymentLockTTL, config.Get().PaymentProcessedTTL))
	reconciler := ledger.NewReconciler(db, paymentRepo, cardRepo, writer, ledger.WithGuard(paymentGuard))

	// v1 handlers
	g := s.Router.Group(config.Get().HttpBaseRequestUrl)
	handlers.RegisterCardRoutes(g, handlers.NewCardHandler(writer))
	handlers.RegisterPaymentRoutes(g, handlers.NewPaymentHandler(reconciler))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(map[string]handlers.Pinger{
		"postgres": db,
		"redis":    redisAdap,
	}))

	s.CloseOnSignal()

	if config.Get().HttpPrefork {
		err = s.PreforkListenAndServe(config.Get().HttpListenAddr)
	} else {
		err = s.ListenAndServe(config.Get().HttpListenAddr)
	}
	if err != nil {
		logger.Error("error in running http-server", "error", err)
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Stat(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
