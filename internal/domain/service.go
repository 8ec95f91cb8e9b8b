package domain

// ServiceDescriptor describes one downstream service allowed to request
// scoped tokens. Descriptors are loaded once at startup and immutable after.
type ServiceDescriptor struct {
	ID                   string   `yaml:"id" json:"id"`
	Name                 string   `yaml:"name" json:"name"`
	Domain               string   `yaml:"domain" json:"domain"`
	CallbackURL          string   `yaml:"callback_url" json:"callback_url"`
	AllowedScopes        []string `yaml:"allowed_scopes" json:"allowed_scopes"`
	RequireVerifiedEmail bool     `yaml:"require_verified_email" json:"require_verified_email"`
	Enabled              bool     `yaml:"enabled" json:"enabled"`
}

// AllowsScope reports whether the scope is within the service's grant.
func (d ServiceDescriptor) AllowsScope(scope string) bool {
	for _, allowed := range d.AllowedScopes {
		if allowed == scope {
			return true
		}
	}
	return false
}
