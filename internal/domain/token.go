package domain

import "time"

// Token is a scoped credential issued for one registered downstream service.
// Rows are never deleted; revocation flips the flag so the issuance service
// stays the audit trail and the single source of truth for validity.
type Token struct {
	TokenID       string
	ServiceID     string
	SubjectUserID string
	Scopes        []string
	Signed        string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Revoked       bool
}
