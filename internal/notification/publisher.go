package notification

import (
	"context"
	"strconv"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	perrors "github.com/pkg/errors"
)

type StreamPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// Publisher puts notification requests on the outbound stream. It is the ledger's Notifier.
type Publisher struct {
	stream StreamPublisher
}

func NewPublisher(stream StreamPublisher) *Publisher {
	return &Publisher{stream: stream}
}

func (p *Publisher) Notify(ctx context.Context, req model.NotificationRequest) error {
	if req.Phone == "" {
		logger.Warn("notification skipped, customer has no phone", "notification_id", req.ID, "customer_id", req.CustomerID)
		return nil
	}
	id, err := p.stream.PublishJSON(ctx, req, map[string]string{
		"kind":      string(req.Kind),
		"tenant_id": strconv.FormatInt(req.TenantID, 10),
	})
	if err != nil {
		return perrors.Wrapf(err, "publish notification %s", req.ID)
	}
	logger.Debug("notification enqueued", "notification_id", req.ID, "stream_id", id, "kind", req.Kind)
	return nil
}
