package domain

// Provider identifiers registered with the flow controller.
const (
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"
	ProviderFacebook  = "facebook"
	ProviderOAuth2    = "oauth2"
)

// ExternalIdentity is the normalized profile an identity provider returns
// for one login attempt. It contains facts only, no decisions; provider
// tokens are discarded once the login completes and are never persisted.
type ExternalIdentity struct {
	Provider      string
	ExternalID    string
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
	AccessToken   string
	RefreshToken  string
}
