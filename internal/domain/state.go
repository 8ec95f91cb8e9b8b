package domain

import "time"

// AuthState is the one-shot record persisted between the authorization
// redirect and the provider callback. The state value binds the callback to
// its initiating request; the redirect target rides along so the browser can
// be sent back to where it came from after login.
type AuthState struct {
	State          string    `json:"state"`
	Provider       string    `json:"provider"`
	RedirectTarget string    `json:"redirect_target"`
	CodeVerifier   string    `json:"code_verifier"`
	CreatedAt      time.Time `json:"created_at"`
}
