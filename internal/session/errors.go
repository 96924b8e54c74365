package session

import "errors"

// Failure classes surfaced to the transport layer. Everything coming out of
// Exchange/Reset is one of these, a history.ErrStorageUnavailable, or an
// unclassified gateway failure whose text is shown verbatim.
var (
	// ErrEmptyMessage rejects empty or whitespace-only inbound text before
	// anything is persisted.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrQuotaExhausted marks a completion failure caused by the account
	// running out of credits; it must never leak raw gateway text.
	ErrQuotaExhausted = errors.New("completion quota exhausted")
)

// quotaClassifier is implemented by gateway errors that can distinguish
// capacity failures from other failures.
type quotaClassifier interface {
	QuotaExhausted() bool
}
