package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gateway "github.com/nimasrn/cashback-ledger/internal/gateways"
	"github.com/nimasrn/cashback-ledger/internal/idempotency"
	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/notification"
	"github.com/nimasrn/cashback-ledger/internal/queue"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/prom"
)

var ErrNotDelivered = errors.New("provider did not accept the notification")

type Sender interface {
	Send(ctx context.Context, req *gateway.NotifyRequest) (*gateway.NotifyResponse, error)
}

type Guard interface {
	AcquireProcessingLock(ctx context.Context, key string) (*idempotency.ProcessingContext, error)
	MarkSuccess(ctx context.Context, pc *idempotency.ProcessingContext) error
	MarkFailure(ctx context.Context, pc *idempotency.ProcessingContext, reason error) error
	ReleaseLock(ctx context.Context, pc *idempotency.ProcessingContext) error
}

// NotificationProcessor delivers one queued notification request at most once per id.
type NotificationProcessor struct {
	sender Sender
	guard  Guard
	now    func() time.Time
}

func NewNotificationProcessor(sender Sender, guard Guard) *NotificationProcessor {
	return &NotificationProcessor{sender: sender, guard: guard, now: time.Now}
}

func (p *NotificationProcessor) GetType() string {
	return "notification"
}

// Process returns nil to ack. Errors leave the message pending for redelivery.
func (p *NotificationProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var req model.NotificationRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.ID == "" {
		// redelivery cannot fix a malformed payload
		logger.Error("dropping malformed notification", "stream_id", msg.ID, "error", err)
		prom.IncNotificationDelivery("unknown", "malformed")
		return nil
	}
	log := logger.With("notification_id", req.ID, "kind", req.Kind, "tenant_id", req.TenantID)

	pc, err := p.guard.AcquireProcessingLock(ctx, req.ID)
	switch {
	case err == nil:
	case errors.Is(err, idempotency.ErrAlreadyProcessed):
		log.Debug("notification already delivered")
		return nil
	case errors.Is(err, idempotency.ErrMaxRetriesExceeded):
		log.Error("notification dropped after max retries", "error", err)
		prom.IncNotificationDelivery(string(req.Channel), "dropped")
		return nil
	default:
		return err
	}

	settled := false
	defer func() {
		if !settled {
			if err := p.guard.ReleaseLock(ctx, pc); err != nil {
				log.Warn("failed to release notification lock", "error", err)
			}
		}
	}()

	channel, err := model.ParseNotifyChannel(string(req.Channel))
	var body string
	if err == nil {
		body, err = notification.Render(req)
	}
	if err != nil {
		log.Error("cannot render notification", "error", err)
		prom.IncNotificationDelivery(string(req.Channel), "unrenderable")
		settled = true
		if markErr := p.guard.MarkSuccess(ctx, pc); markErr != nil {
			log.Warn("failed to settle unrenderable notification", "error", markErr)
		}
		return nil
	}

	start := p.now()
	resp, err := p.sender.Send(ctx, &gateway.NotifyRequest{
		NotificationID: req.ID,
		Channel:        channel,
		PhoneNumber:    req.Phone,
		Body:           body,
	})
	prom.ObserveNotificationDelivery(string(channel), p.now().Sub(start).Seconds())

	if err == nil && !resp.Delivered() {
		err = fmt.Errorf("%w: status %s %s", ErrNotDelivered, resp.Status, resp.ErrorCode)
	}
	if err != nil {
		prom.IncNotificationDelivery(string(channel), "failed")
		log.Warn("notification delivery failed", "retry_count", pc.RetryCount, "error", err)
		settled = true
		if markErr := p.guard.MarkFailure(ctx, pc, err); markErr != nil {
			log.Error("failed to record delivery failure", "error", markErr)
		}
		return err
	}

	prom.IncNotificationDelivery(string(channel), "delivered")
	settled = true
	if markErr := p.guard.MarkSuccess(ctx, pc); markErr != nil {
		log.Error("failed to mark notification delivered", "error", markErr)
	}
	log.Info("notification delivered",
		"channel", channel,
		"provider_ref", resp.ProviderRef,
		"lag_ms", p.now().Sub(req.RequestedAt).Milliseconds(),
	)
	return nil
}
