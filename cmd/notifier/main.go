package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/config"
	gateway "github.com/nimasrn/cashback-ledger/internal/gateways"
	"github.com/nimasrn/cashback-ledger/internal/idempotency"
	"github.com/nimasrn/cashback-ledger/internal/processor"
	"github.com/nimasrn/cashback-ledger/internal/queue"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
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
	logger.Info("starting notifier", "version", version, "commit", commit, "date", date)

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "ledger-notifier",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	var providers []gateway.ProviderConfig
	for i, url := range config.Get().ProviderURLs() {
		providers = append(providers, gateway.ProviderConfig{
			Name:   fmt.Sprintf("provider-%d", i),
			URL:    url,
			Weight: 100 - i*20,
		})
	}
	client, err := gateway.NewClient(gateway.Config{
		Providers:               providers,
		Timeout:                 config.Get().ProviderTimeout,
		MaxRetries:              config.Get().ProviderMaxRetries,
		RetryDelay:              time.Millisecond * 100,
		MaxConns:                1000,
		HealthCheckInterval:     30 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	})
	if err != nil {
		logger.Error("failed to create gateway", "error", err)
		return
	}
	defer client.Close()

	guard := idempotency.NewService(redisAdap, idempotency.NotificationConfig(
		config.Get().NotifyLockTTL,
		config.Get().NotifyProcessedTTL,
		config.Get().NotifyQueueMaxRetries,
	))

	consumerName := config.Get().NotifyQueueConsumerName
	if consumerName == "" {
		if consumerName, err = os.Hostname(); err != nil {
			consumerName = "notifier"
		}
	}

	service := processor.NewNotifierService(redisAdap, processor.NewNotificationProcessor(client, guard), processor.ServiceConfig{
		Queue: queue.QueueConfig{
			Name:              config.Get().NotifyQueueName,
			ConsumerGroup:     config.Get().NotifyQueueConsumerGroup,
			ConsumerName:      consumerName,
			MaxRetries:        config.Get().NotifyQueueMaxRetries,
			VisibilityTimeout: config.Get().NotifyQueueVisibilityTimeout,
			PollInterval:      config.Get().NotifyQueuePollInterval,
			BatchSize:         config.Get().NotifyQueueBatchSize,
			MaxLen:            config.Get().NotifyQueueMaxLen,
			EnableDLQ:         config.Get().NotifyQueueEnableDLQ,
		},
		Consumers: config.Get().NotifyQueueConsumers,
		Workers:   config.Get().NotifyWorkers,
	})

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
	}()

	if err = service.Start(); err != nil {
		logger.Error("failed to start notifier", "error", err)
		service.Stop()
		return
	}

	<-c
	service.Stop()
	logger.Sync()
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
