package model

import (
	"errors"
	"fmt"
	"strings"
)

// MaxAmountCents is 100,000,000.00 in the card currency.
const MaxAmountCents int64 = 10_000_000_000

var (
	ErrInvalidAmount        = errors.New("amount must be positive and at most 100000000.00")
	ErrInvalidCategory      = errors.New("unknown category")
	ErrInvalidTier          = errors.New("unknown tier")
	ErrInvalidSourceMethod  = errors.New("unknown source method")
	ErrInvalidPurpose       = errors.New("unknown payment purpose")
	ErrInvalidPaymentStatus = errors.New("unknown payment status")
	ErrInvalidChannel       = errors.New("unknown notify channel")
)

// Amount is a positive, bounded number of cents. The zero value is not a valid amount.
type Amount struct {
	cents int64
}

func NewAmount(cents int64) (Amount, error) {
	if cents <= 0 || cents > MaxAmountCents {
		return Amount{}, fmt.Errorf("%w: %d", ErrInvalidAmount, cents)
	}
	return Amount{cents: cents}, nil
}

func (a Amount) Cents() int64 { return a.cents }

func (a Amount) IsZero() bool { return a.cents == 0 }

type Category string

const (
	CategoryPurchase Category = "PURCHASE"
	CategoryRepair   Category = "REPAIR"
	CategoryOther    Category = "OTHER"
)

func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToUpper(strings.TrimSpace(s))); c {
	case CategoryPurchase, CategoryRepair, CategoryOther:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

type Tier string

const (
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToUpper(strings.TrimSpace(s))); t {
	case TierSilver, TierGold, TierPlatinum:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
}

// Rank orders tiers, SILVER is the lowest. Unknown tiers rank 0.
func (t Tier) Rank() int {
	switch t {
	case TierSilver:
		return 1
	case TierGold:
		return 2
	case TierPlatinum:
		return 3
	}
	return 0
}

func (t Tier) Outranks(other Tier) bool { return t.Rank() > other.Rank() }

type OperationKind string

const (
	OperationEarn   OperationKind = "EARN"
	OperationRedeem OperationKind = "REDEEM"
	OperationAdjust OperationKind = "ADJUST"
)

type CardStatus string

const (
	CardStatusActive   CardStatus = "ACTIVE"
	CardStatusInactive CardStatus = "INACTIVE"
	CardStatusBlocked  CardStatus = "BLOCKED"
	CardStatusClosed   CardStatus = "CLOSED"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch p := PaymentStatus(strings.ToUpper(strings.TrimSpace(s))); p {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, s)
}

// IsClosed reports a terminal non-success status.
func (p PaymentStatus) IsClosed() bool {
	return p == PaymentStatusFailed || p == PaymentStatusCancelled
}

type PaymentPurpose string

const (
	PaymentPurposeTopUp    PaymentPurpose = "TOPUP"
	PaymentPurposePurchase PaymentPurpose = "PURCHASE"
)

func ParsePaymentPurpose(s string) (PaymentPurpose, error) {
	switch p := PaymentPurpose(strings.ToUpper(strings.TrimSpace(s))); p {
	case PaymentPurposeTopUp, PaymentPurposePurchase:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPurpose, s)
}

type SourceMethod string

const (
	SourceCash     SourceMethod = "CASH"
	SourceCard     SourceMethod = "CARD"
	SourceOnline   SourceMethod = "ONLINE"
	SourceTransfer SourceMethod = "TRANSFER"
)

func ParseSourceMethod(s string) (SourceMethod, error) {
	switch m := SourceMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case SourceCash, SourceCard, SourceOnline, SourceTransfer:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSourceMethod, s)
}

type NotifyChannel string

const (
	ChannelSMS      NotifyChannel = "SMS"
	ChannelWhatsApp NotifyChannel = "WHATSAPP"
)

func ParseNotifyChannel(s string) (NotifyChannel, error) {
	switch c := NotifyChannel(strings.ToUpper(strings.TrimSpace(s))); c {
	case ChannelSMS, ChannelWhatsApp:
		return c, nil
	case "":
		return ChannelSMS, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChannel, s)
}
