package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel reasons carried by the typed errors below, match them with errors.Is.
var (
	ErrCardNotFound        = errors.New("card not found in tenant")
	ErrCardInactive        = errors.New("card is not active")
	ErrCardUnlinked        = errors.New("card is not linked to a customer")
	ErrStoreMismatch       = errors.New("card is bound to another store")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPaymentNotFound     = errors.New("no payment matches the reference")
	ErrPaymentNotPending   = errors.New("payment is not pending")
	ErrNegativeRate        = errors.New("configured rate is negative")
	ErrTierRulesOrder      = errors.New("tier thresholds must increase with tier rank")
	ErrInvalidCloseStatus  = errors.New("payments can only be closed as FAILED or CANCELLED")
)

// ConfigurationError is a tenant setup problem. Retrying does not help.
type ConfigurationError struct {
	TenantID int64
	Reason   error
	Detail   string
}

func (e *ConfigurationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("configuration error (tenant %d): %v: %s", e.TenantID, e.Reason, e.Detail)
	}
	return fmt.Sprintf("configuration error (tenant %d): %v", e.TenantID, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Reason }

// AuthorizationError rejects a request before anything is locked for writing.
// BoundStoreID is set on store mismatches so the operator can redirect the customer.
type AuthorizationError struct {
	Reason       error
	BoundStoreID int64
}

func (e *AuthorizationError) Error() string {
	if errors.Is(e.Reason, ErrStoreMismatch) {
		return fmt.Sprintf("authorization error: %v (bound store %d)", e.Reason, e.BoundStoreID)
	}
	return fmt.Sprintf("authorization error: %v", e.Reason)
}

func (e *AuthorizationError) Unwrap() error { return e.Reason }

type BusinessRuleViolation struct {
	Reason error
	Detail string
}

func (e *BusinessRuleViolation) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v: %s", e.Reason, e.Detail)
	}
	return e.Reason.Error()
}

func (e *BusinessRuleViolation) Unwrap() error { return e.Reason }

// TransientError wraps infrastructure failures: commit errors, lock timeouts, lost connections.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ReconciliationError needs a human. It is never retried automatically.
type ReconciliationError struct {
	Reference string
	Reason    error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation error for %q: %v", e.Reference, e.Reason)
}

func (e *ReconciliationError) Unwrap() error { return e.Reason }

func IsRetryable(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// classify keeps domain errors as they are and turns anything else into a TransientError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		cfg  *ConfigurationError
		auth *AuthorizationError
		biz  *BusinessRuleViolation
		tr   *TransientError
		rec  *ReconciliationError
	)
	switch {
	case errors.As(err, &cfg), errors.As(err, &auth), errors.As(err, &biz),
		errors.As(err, &tr), errors.As(err, &rec):
		return err
	}
	return &TransientError{Op: op, Err: err}
}

// outcomeLabel is the metrics label for an operation result.
func outcomeLabel(err error) string {
	var (
		cfg  *ConfigurationError
		auth *AuthorizationError
		biz  *BusinessRuleViolation
		rec  *ReconciliationError
	)
	switch {
	case err == nil:
		return "committed"
	case errors.As(err, &auth):
		return "unauthorized"
	case errors.As(err, &biz):
		return "rejected"
	case errors.As(err, &cfg):
		return "misconfigured"
	case errors.As(err, &rec):
		return "unreconciled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "transient"
}
