package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/queue"
	"github.com/nimasrn/cashback-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "19.00", FormatCents(1900))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "0.00", FormatCents(0))
	assert.Equal(t, "100000000.00", FormatCents(model.MaxAmountCents))
}

func TestRender(t *testing.T) {
	base := model.NotificationRequest{
		Kind:          model.NotificationReceipt,
		CardUID:       "CARD-0001",
		CustomerName:  "Dana",
		AmountCents:   10_000,
		CashbackCents: 400,
		BalanceCents:  1900,
	}

	earn := base
	earn.OperationKind = model.OperationEarn
	text, err := Render(earn)
	require.NoError(t, err)
	assert.Equal(t, "Hi Dana, you earned 4.00 cashback on a 100.00 purchase. Card CARD-0001 balance: 19.00.", text)

	redeem := base
	redeem.OperationKind = model.OperationRedeem
	text, err = Render(redeem)
	require.NoError(t, err)
	assert.Contains(t, text, "100.00 was redeemed")

	topUp := base
	topUp.OperationKind = model.OperationAdjust
	topUp.CustomerName = ""
	text, err = Render(topUp)
	require.NoError(t, err)
	assert.Contains(t, text, "Hi there, 100.00 was added")

	upgrade := model.NotificationRequest{
		Kind: model.NotificationTierUpgrade, CustomerName: "Dana", CardUID: "CARD-0001",
		FromTier: model.TierSilver, ToTier: model.TierGold,
	}
	text, err = Render(upgrade)
	require.NoError(t, err)
	assert.Contains(t, text, "from SILVER to GOLD")

	_, err = Render(model.NotificationRequest{Kind: "FAX"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestPublisher_Notify(t *testing.T) {
	_, adapter := testutil.SetupTestRedis(t)
	q, err := queue.NewQueue(adapter, queue.QueueConfig{
		Name:          "notifications",
		ConsumerGroup: "notifier",
		ConsumerName:  "test",
		MaxRetries:    3,
		PollInterval:  10 * time.Millisecond,
		BatchSize:     10,
	})
	require.NoError(t, err)

	publisher := NewPublisher(q)
	ctx := context.Background()

	req := model.NotificationRequest{
		ID: "n-1", Kind: model.NotificationReceipt, TenantID: 9, Phone: "+15550001111",
		OperationKind: model.OperationEarn, BalanceCents: 1900,
	}
	require.NoError(t, publisher.Notify(ctx, req))
	require.NoError(t, publisher.Notify(ctx, model.NotificationRequest{ID: "n-2", Kind: model.NotificationReceipt}))

	stats, err := q.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalMessages, "requests without a phone are not enqueued")

	received := make(chan *queue.Message, 1)
	require.NoError(t, q.Consume(func(_ context.Context, msg *queue.Message) error {
		received <- msg
		return nil
	}))
	defer q.Stop(time.Second)

	select {
	case msg := <-received:
		var got model.NotificationRequest
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "n-1", got.ID)
		assert.Equal(t, int64(1900), got.BalanceCents)
		assert.Equal(t, "9", msg.Metadata["tenant_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("message not consumed")
	}
}
