package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
)

var ErrNoAvailableProviders = errors.New("no available notification providers")

type DeliveryStatus string

const (
	StatusAccepted  DeliveryStatus = "ACCEPTED"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusFailed    DeliveryStatus = "FAILED"
)

const sendPath = "/api/v1/notifications/send"

type NotifyRequest struct {
	NotificationID string              `json:"notification_id"`
	Channel        model.NotifyChannel `json:"channel"`
	PhoneNumber    string              `json:"phone_number"`
	Body           string              `json:"body"`
}

type NotifyResponse struct {
	NotificationID string         `json:"notification_id"`
	Status         DeliveryStatus `json:"status"`
	ProviderRef    string         `json:"provider_ref,omitempty"`
	ErrorCode      string         `json:"error_code,omitempty"`
	ErrorMsg       string         `json:"error_message,omitempty"`
	ProcessedAt    time.Time      `json:"processed_at"`
}

// Delivered reports whether the provider took the message. ACCEPTED counts, delivery receipts are not tracked.
func (r *NotifyResponse) Delivered() bool {
	return r.Status == StatusAccepted || r.Status == StatusDelivered
}

type ProviderConfig struct {
	Name   string
	URL    string
	Weight int
}

type Config struct {
	Providers               []ProviderConfig
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	HealthCheckInterval     time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

func (c *Config) withDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 100 * time.Millisecond
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 512
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = 30 * time.Second
	}
	if c.CircuitBreakerThreshold <= 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.CircuitBreakerTimeout <= 0 {
		c.CircuitBreakerTimeout = 30 * time.Second
	}
}

// Client sends rendered notifications to the best scoring provider, retrying on the next best.
type Client struct {
	config    Config
	providers []*Provider
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewClient(config Config) (*Client, error) {
	if len(config.Providers) == 0 {
		return nil, errors.New("at least one notification provider is required")
	}
	config.withDefaults()

	c := &Client{
		config:    config,
		providers: make([]*Provider, 0, len(config.Providers)),
		stopCh:    make(chan struct{}),
	}
	for _, pc := range config.Providers {
		httpClient := &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: time.Minute,
		}
		c.providers = append(c.providers, NewProvider(pc.Name, pc.URL, pc.Weight, httpClient))
		logger.Info("notification provider registered", "name", pc.Name, "url", pc.URL, "weight", pc.Weight)
	}

	c.wg.Add(1)
	go c.healthChecker()

	return c, nil
}

// SelectBestProvider returns the available provider with the highest score.
func (c *Client) SelectBestProvider() (*Provider, error) {
	var (
		best      *Provider
		bestScore float64
	)
	for _, p := range c.providers {
		if score := p.Score(); score > bestScore {
			best, bestScore = p, score
		}
	}
	if best == nil {
		return nil, ErrNoAvailableProviders
	}
	return best, nil
}

func (c *Client) Send(ctx context.Context, req *NotifyRequest) (*NotifyResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal notify request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		provider, err := c.SelectBestProvider()
		if err != nil {
			lastErr = err
			continue
		}

		start := time.Now()
		raw, err := c.doRequest(ctx, provider, fasthttp.MethodPost, sendPath, body)
		latency := time.Since(start).Milliseconds()
		if err != nil {
			provider.metrics.RecordFailure()
			c.checkCircuitBreaker(provider)
			logger.Warn("notification provider request failed",
				"provider", provider.name, "notification_id", req.NotificationID, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		provider.metrics.RecordSuccess(latency)

		var resp NotifyResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("unmarshal notify response: %w", err)
		}
		logger.Debug("notification handed to provider",
			"provider", provider.name, "notification_id", req.NotificationID, "status", resp.Status, "latency_ms", latency)
		return &resp, nil
	}

	return nil, fmt.Errorf("notify failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) doRequest(ctx context.Context, provider *Provider, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(provider.url + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}
	if err := provider.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request to %s: %w", provider.name, err)
	}

	if code := resp.StatusCode(); code != fasthttp.StatusOK && code != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("provider %s answered %d: %s", provider.name, code, resp.Body())
	}
	return append([]byte(nil), resp.Body()...), nil
}

func (c *Client) checkCircuitBreaker(provider *Provider) {
	fails := provider.metrics.ConsecutiveFails.Load()
	if fails < int32(c.config.CircuitBreakerThreshold) {
		return
	}
	provider.openCircuit(c.config.CircuitBreakerTimeout)
	logger.Warn("provider circuit opened", "provider", provider.name, "consecutive_fails", fails, "timeout", c.config.CircuitBreakerTimeout)
}

func (c *Client) healthChecker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.checkHealth()
		case <-c.stopCh:
			return
		}
	}
}

// checkHealth polls /health on every provider that is not behind an open circuit.
func (c *Client) checkHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	for _, p := range c.providers {
		old := p.GetState()
		if old == StateCircuitOpen {
			continue
		}
		next := old
		if c.healthy(ctx, p) {
			if old == StateUnhealthy {
				next = StateHealthy
			}
		} else {
			next = StateUnhealthy
		}
		if next != old {
			p.SetState(next)
			logger.Info("provider state changed", "provider", p.name, "from", old.String(), "to", next.String())
		}
	}
}

func (c *Client) healthy(ctx context.Context, p *Provider) bool {
	raw, err := c.doRequest(ctx, p, fasthttp.MethodGet, "/health", nil)
	if err != nil {
		return false
	}
	var health struct {
		Status string `json:"status"`
	}
	return json.Unmarshal(raw, &health) == nil && health.Status == "healthy"
}

type ProviderStats struct {
	Name             string  `json:"name"`
	State            string  `json:"state"`
	Score            float64 `json:"score"`
	TotalRequests    int64   `json:"total_requests"`
	FailedRequests   int64   `json:"failed_requests"`
	SuccessRate      float64 `json:"success_rate"`
	AvgLatencyMs     int64   `json:"avg_latency_ms"`
	P95LatencyMs     int64   `json:"p95_latency_ms"`
	ConsecutiveFails int32   `json:"consecutive_fails"`
}

// Stats returns one entry per provider, best score first.
func (c *Client) Stats() []ProviderStats {
	stats := make([]ProviderStats, 0, len(c.providers))
	for _, p := range c.providers {
		stats = append(stats, ProviderStats{
			Name:             p.name,
			State:            p.GetState().String(),
			Score:            p.Score(),
			TotalRequests:    p.metrics.TotalRequests.Load(),
			FailedRequests:   p.metrics.FailedReqs.Load(),
			SuccessRate:      p.metrics.SuccessRate(),
			AvgLatencyMs:     p.metrics.AvgLatencyMs(),
			P95LatencyMs:     p.metrics.P95LatencyMs(),
			ConsecutiveFails: p.metrics.ConsecutiveFails.Load(),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Score > stats[j].Score })
	return stats
}

func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	return nil
}
