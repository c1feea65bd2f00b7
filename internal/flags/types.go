package flags

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("flag not found")
	ErrInvalidKey = errors.New("invalid flag key")
)

// Flag is a flag's effective value. Stored is false when the value is a
// well-known default with no override.
type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	Stored    bool      `json:"stored"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Well-known flags read by the gateway.
const (
	// VerifyAccounts turns on the on-chain token account check for build
	// requests that do not say either way.
	VerifyAccounts = "swap.verify_accounts"
	// AuditEnabled switches recording of quote and build events.
	AuditEnabled = "audit.enabled"
)

// Known describes the well-known flags and their defaults.
var Known = map[string]bool{
	VerifyAccounts: false,
	AuditEnabled:   true,
}
