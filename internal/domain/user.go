package domain

import "time"

// Verification states a canonical user moves through during platform vetting.
const (
	VerificationUnverified = "unverified"
	VerificationVerified   = "verified"
	VerificationRejected   = "rejected"
)

// User is the canonical account a person resolves to regardless of which
// external identity provider vouched for them.
type User struct {
	ID                 string
	Email              string
	Name               string
	AvatarURL          string
	LinkedProviders    []string
	Roles              []string
	VerificationStatus string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasProvider reports whether the given provider is already linked.
func (u User) HasProvider(provider string) bool {
	for _, p := range u.LinkedProviders {
		if p == provider {
			return true
		}
	}
	return false
}
