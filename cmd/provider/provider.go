package main

import (
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type DeliveryStatus string

const (
	StatusAccepted  DeliveryStatus = "ACCEPTED"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusFailed    DeliveryStatus = "FAILED"
)

type SendRequest struct {
	NotificationID string `json:"notification_id" binding:"required"`
	Channel        string `json:"channel" binding:"required,oneof=SMS WHATSAPP"`
	PhoneNumber    string `json:"phone_number" binding:"required"`
	Body           string `json:"body" binding:"required"`
}

type SendResponse struct {
	NotificationID string         `json:"notification_id"`
	Status         DeliveryStatus `json:"status"`
	ProviderRef    string         `json:"provider_ref,omitempty"`
	ErrorCode      string         `json:"error_code,omitempty"`
	ErrorMsg       string         `json:"error_message,omitempty"`
	ProcessedAt    time.Time      `json:"processed_at"`
}

type HealthResponse struct {
	Status       string    `json:"status"`
	ProviderID   string    `json:"provider_id"`
	Timestamp    time.Time `json:"timestamp"`
	DeliveryRate float64   `json:"delivery_rate"`
}

var errorMessages = map[string]string{
	"INVALID_NUMBER":   "The phone number is invalid or not in service",
	"NETWORK_ERROR":    "Network connectivity issue with carrier",
	"BLOCKED":          "The recipient has blocked notifications",
	"INVALID_CONTENT":  "Body violates carrier content policies",
	"CARRIER_REJECTED": "Carrier rejected the notification",
}

// MockProvider stands in for an SMS or WhatsApp vendor during local runs and load tests.
type MockProvider struct {
	mu           sync.Mutex
	deliveryRate float64
	downtimeRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	providerID   string
	rng          *rand.Rand
}

func NewMockProvider(deliveryRate, downtimeRate float64, minDelay, maxDelay time.Duration) *MockProvider {
	return &MockProvider{
		deliveryRate: deliveryRate,
		downtimeRate: downtimeRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		providerID:   "MOCK_PROVIDER_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProvider) float() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64()
}

func (m *MockProvider) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) randomErrorCode() string {
	codes := make([]string, 0, len(errorMessages))
	for code := range errorMessages {
		codes = append(codes, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return codes[m.rng.Intn(len(codes))]
}

func (m *MockProvider) rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveryRate
}

func (m *MockProvider) setRate(r float64) {
	m.mu.Lock()
	m.deliveryRate = r
	m.mu.Unlock()
}

func (m *MockProvider) deliver(req *SendRequest) *SendResponse {
	delay := m.randomDelay()
	time.Sleep(delay)

	resp := &SendResponse{
		NotificationID: req.NotificationID,
		ProcessedAt:    time.Now().UTC(),
	}
	if m.float() < m.rate() {
		resp.Status = StatusAccepted
		resp.ProviderRef = uuid.NewString()
		log.Info().
			Str("notification_id", req.NotificationID).
			Str("channel", req.Channel).
			Dur("delay", delay).
			Msg("notification accepted")
		return resp
	}

	resp.Status = StatusFailed
	resp.ErrorCode = m.randomErrorCode()
	resp.ErrorMsg = errorMessages[resp.ErrorCode]
	log.Warn().
		Str("notification_id", req.NotificationID).
		Str("error_code", resp.ErrorCode).
		Msg("notification rejected")
	return resp
}

type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	resp := h.provider.deliver(&req)
	status := http.StatusOK
	if resp.Status == StatusFailed {
		// accepted for processing but not delivered
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

func (h *Handler) Health(c *gin.Context) {
	if h.provider.float() < h.provider.downtimeRate {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		ProviderID:   h.provider.providerID,
		Timestamp:    time.Now().UTC(),
		DeliveryRate: h.provider.rate(),
	})
}

// UpdateConfig changes the delivery rate at runtime so failover can be exercised by hand.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var body struct {
		DeliveryRate *float64 `json:"delivery_rate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	if *body.DeliveryRate < 0 || *body.DeliveryRate > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "delivery_rate must be within [0, 1]"})
		return
	}
	h.provider.setRate(*body.DeliveryRate)
	log.Info().Float64("rate", *body.DeliveryRate).Msg("delivery rate updated")

	c.JSON(http.StatusOK, gin.H{"delivery_rate": h.provider.rate()})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/notifications/send", handler.Send)
		v1.PUT("/config", handler.UpdateConfig)
	}
	router.GET("/health", handler.Health)

	return router
}
