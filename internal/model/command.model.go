package model

// Actor is the already authenticated caller of a ledger operation.
type Actor struct {
	TenantID   int64
	StoreID    int64
	OperatorID string
}

type EarnCommand struct {
	Actor
	CardUID  string
	Amount   Amount
	Category Category
	Note     string
}

type RedeemCommand struct {
	Actor
	CardUID string
	Amount  Amount
	Note    string
}

type AddFundsCommand struct {
	Actor
	CardUID      string
	Amount       Amount
	SourceMethod SourceMethod
	Note         string
}

type PaymentIntentCommand struct {
	Actor
	CardUID  string
	Amount   Amount
	Purpose  PaymentPurpose
	Category Category
}

type LedgerResult struct {
	Transaction     *Transaction `json:"transaction"`
	CashbackCents   int64        `json:"cashback_cents"`
	NewBalanceCents int64        `json:"new_balance_cents"`
	TierChange      *TierChange  `json:"tier_change,omitempty"`
}

type TierChange struct {
	From    Tier `json:"from"`
	To      Tier `json:"to"`
	Changed bool `json:"changed"`
}

// Upgraded is true only when the tier moved up, downgrades never count.
func (t TierChange) Upgraded() bool {
	return t.Changed && t.To.Outranks(t.From)
}

type ReconcileResult struct {
	Reference     string `json:"reference"`
	Applied       bool   `json:"applied"`
	TransactionID *int64 `json:"transaction_id,omitempty"`
}

type BalanceAudit struct {
	CardID           int64    `json:"card_id"`
	CardUID          string   `json:"card_uid"`
	CachedBalance    int64    `json:"cached_balance_cents"`
	ReplayedBalance  int64    `json:"replayed_balance_cents"`
	TransactionCount int      `json:"transaction_count"`
	Consistent       bool     `json:"consistent"`
	Problems         []string `json:"problems,omitempty"`
	Rebuilt          bool     `json:"rebuilt,omitempty"`
}
