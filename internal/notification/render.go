package notification

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/shopspring/decimal"
)

var ErrUnknownKind = errors.New("unknown notification kind")

// FormatCents renders minor units as a fixed two decimal string, e.g. 1900 -> "19.00".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Render builds the customer facing text for a request.
func Render(req model.NotificationRequest) (string, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		name = "there"
	}

	switch req.Kind {
	case model.NotificationReceipt:
		return renderReceipt(name, req)
	case model.NotificationTierUpgrade:
		return fmt.Sprintf("Congratulations %s, your card %s moved from %s to %s. Enjoy the higher cashback.",
			name, req.CardUID, req.FromTier, req.ToTier), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
}

func renderReceipt(name string, req model.NotificationRequest) (string, error) {
	balance := FormatCents(req.BalanceCents)
	amount := FormatCents(req.AmountCents)

	switch req.OperationKind {
	case model.OperationEarn:
		return fmt.Sprintf("Hi %s, you earned %s cashback on a %s purchase. Card %s balance: %s.",
			name, FormatCents(req.CashbackCents), amount, req.CardUID, balance), nil
	case model.OperationRedeem:
		return fmt.Sprintf("Hi %s, %s was redeemed from card %s. Balance: %s.",
			name, amount, req.CardUID, balance), nil
	case model.OperationAdjust:
		return fmt.Sprintf("Hi %s, %s was added to card %s. Balance: %s.",
			name, amount, req.CardUID, balance), nil
	}
	return "", fmt.Errorf("%w: receipt for %q", ErrUnknownKind, req.OperationKind)
}
