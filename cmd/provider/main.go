package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	addr := getEnv("PROVIDER_LISTEN_ADDR", ":8081")
	deliveryRate := getEnvFloat("PROVIDER_DELIVERY_RATE", 1)
	downtimeRate := getEnvFloat("PROVIDER_DOWNTIME_RATE", 0)
	minDelay := getEnvDuration("PROVIDER_MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("PROVIDER_MAX_DELAY", 500*time.Millisecond)

	log.Info().
		Str("addr", addr).
		Float64("delivery_rate", deliveryRate).
		Float64("downtime_rate", downtimeRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("starting mock notification provider")

	router := SetupRouter(NewHandler(NewMockProvider(deliveryRate, downtimeRate, minDelay, maxDelay)))
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
