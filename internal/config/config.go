package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every tunable of the api, notifier and cli processes.
// Nothing else in the module reads the environment directly.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=cashback_ledger"`
	AppDebug            bool   `env:"APP_DEBUG,default=false"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR,default=:9100"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI,default=/metrics"`

	HttpListenAddr        string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpBaseRequestUrl    string        `env:"HTTP_BASE_REQUEST_URI,default=/api/v1"`
	HttpRequestTimeout    time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=5s"`
	HttpCompressionLevel  int           `env:"HTTP_COMPRESSION_LEVEL,default=1"`
	HttpPrefork           bool          `env:"HTTP_PREFORK,default=false"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	MigrationsDir string `env:"MIGRATIONS_DIR,default=migrations"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE,default=0"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=ledger:"`

	PromNamespace string `env:"PROM_NAMESPACE,default=cashback"`

	LedgerTxTimeout     time.Duration `env:"LEDGER_TX_TIMEOUT,default=3s"`
	LedgerNotifyTimeout time.Duration `env:"LEDGER_NOTIFY_TIMEOUT,default=2s"`
	PaymentLockTTL      time.Duration `env:"PAYMENT_LOCK_TTL,default=30s"`
	PaymentProcessedTTL time.Duration `env:"PAYMENT_PROCESSED_TTL,default=168h"`

	NotifyQueueName              string        `env:"NOTIFY_QUEUE_NAME,default=notifications"`
	NotifyQueueConsumerGroup     string        `env:"NOTIFY_QUEUE_CONSUMER_GROUP,default=notifier"`
	NotifyQueueConsumerName      string        `env:"NOTIFY_QUEUE_CONSUMER_NAME"`
	NotifyQueueConsumers         int           `env:"NOTIFY_QUEUE_CONSUMERS,default=4"`
	NotifyQueueMaxRetries        int           `env:"NOTIFY_QUEUE_MAX_RETRIES,default=5"`
	NotifyQueueVisibilityTimeout time.Duration `env:"NOTIFY_QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	NotifyQueuePollInterval      time.Duration `env:"NOTIFY_QUEUE_POLL_INTERVAL,default=500ms"`
	NotifyQueueBatchSize         int64         `env:"NOTIFY_QUEUE_BATCH_SIZE,default=20"`
	NotifyQueueMaxLen            int64         `env:"NOTIFY_QUEUE_MAX_LEN,default=100000"`
	NotifyQueueEnableDLQ         bool          `env:"NOTIFY_QUEUE_ENABLE_DLQ,default=true"`
	NotifyWorkers                int           `env:"NOTIFY_WORKERS,default=16"`
	NotifyLockTTL                time.Duration `env:"NOTIFY_LOCK_TTL,default=30s"`
	NotifyProcessedTTL           time.Duration `env:"NOTIFY_PROCESSED_TTL,default=24h"`

	ProviderPrimaryUrl   string        `env:"PROVIDER_PRIMARY_URL,default=http://localhost:8081"`
	ProviderSecondaryUrl string        `env:"PROVIDER_SECONDARY_URL"`
	ProviderBackupUrl    string        `env:"PROVIDER_BACKUP_URL"`
	ProviderTimeout      time.Duration `env:"PROVIDER_TIMEOUT,default=5s"`
	ProviderMaxRetries   int           `env:"PROVIDER_MAX_RETRIES,default=3"`
	ProviderListenAddr   string        `env:"PROVIDER_LISTEN_ADDR,default=:8081"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to configuration")
	}

	config = c
	return nil
}

// Set replaces the loaded configuration, used by tests and the cli.
func Set(c *Config) {
	config = c
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// ProviderURLs returns the configured provider endpoints, primary first.
func (c *Config) ProviderURLs() []string {
	var urls []string
	for _, u := range []string{c.ProviderPrimaryUrl, c.ProviderSecondaryUrl, c.ProviderBackupUrl} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
