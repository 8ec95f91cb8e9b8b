package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/providerpath/providerpath-sso/internal/domain"
	"github.com/providerpath/providerpath-sso/internal/provider"
	"github.com/providerpath/providerpath-sso/internal/repository"
	"github.com/providerpath/providerpath-sso/internal/resolver"
	"github.com/providerpath/providerpath-sso/internal/session"
)

// knownProviders distinguishes a provider that exists but has no
// configured adapter from a name this system has never heard of.
var knownProviders = map[string]bool{
	domain.ProviderGoogle:    true,
	domain.ProviderMicrosoft: true,
	domain.ProviderFacebook:  true,
	domain.ProviderOAuth2:    true,
}

// CallbackInput carries the query parameters of the provider callback.
type CallbackInput struct {
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
}

// CallbackResult is the outcome of a completed login.
type CallbackResult struct {
	Session        *domain.Session
	User           *domain.User
	RedirectTarget string
}

// FlowConfig bundles the flow-level tunables.
type FlowConfig struct {
	StateTTL             time.Duration
	ProviderTimeout      time.Duration
	DefaultRedirect      string
	AllowedRedirectHosts []string
}

// Flow orchestrates the authorization-code round trip: state minting on
// the way out, state redemption, identity resolution and session
// establishment on the way back.
type Flow struct {
	providers *provider.Registry
	states    repository.StateStore
	resolver  *resolver.Resolver
	sessions  *session.Bridge
	cfg       FlowConfig
	logger    *zap.Logger
}

func NewFlow(providers *provider.Registry, states repository.StateStore, res *resolver.Resolver, sessions *session.Bridge, cfg FlowConfig, logger *zap.Logger) *Flow {
	return &Flow{
		providers: providers,
		states:    states,
		resolver:  res,
		sessions:  sessions,
		cfg:       cfg,
		logger:    logger,
	}
}

// Initiate starts a login against the named provider and returns the
// authorization URL to redirect the browser to.
func (f *Flow) Initiate(ctx context.Context, providerName, redirectTarget string) (string, error) {
	adapter, err := f.lookupProvider(providerName)
	if err != nil {
		return "", err
	}

	target, err := f.resolveRedirect(redirectTarget)
	if err != nil {
		return "", err
	}

	state, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	verifier, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generate code verifier: %w", err)
	}

	authState := &domain.AuthState{
		State:          state,
		Provider:       adapter.Name(),
		RedirectTarget: target,
		CodeVerifier:   verifier,
		CreatedAt:      time.Now().UTC(),
	}
	if err := f.states.Save(ctx, authState, f.cfg.StateTTL); err != nil {
		return "", fmt.Errorf("save auth state: %w", err)
	}

	f.logger.Info("login initiated", zap.String("provider", adapter.Name()))
	return adapter.AuthCodeURL(state, codeChallenge(verifier)), nil
}

// HandleCallback completes the login. The state is redeemed exactly once
// before anything else happens, so a replayed or forged callback fails
// closed without touching the provider.
func (f *Flow) HandleCallback(ctx context.Context, providerName string, input CallbackInput) (*CallbackResult, error) {
	adapter, err := f.lookupProvider(providerName)
	if err != nil {
		return nil, err
	}

	if input.State == "" {
		return nil, domain.ErrStateMismatch
	}
	authState, err := f.states.Consume(ctx, input.State)
	if err != nil {
		return nil, err
	}
	if authState.Provider != adapter.Name() {
		return nil, domain.ErrStateMismatch
	}

	if input.ErrorCode != "" {
		f.logger.Info("provider rejected login",
			zap.String("provider", adapter.Name()),
			zap.String("error", input.ErrorCode),
			zap.String("description", input.ErrorDescription),
		)
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderRejected, input.ErrorCode)
	}
	if input.Code == "" {
		return nil, fmt.Errorf("%w: missing code", domain.ErrProviderRejected)
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, f.cfg.ProviderTimeout)
	defer cancel()

	identity, err := adapter.Exchange(exchangeCtx, input.Code, authState.CodeVerifier)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(exchangeCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProviderUnreachable, adapter.Name())
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderRejected, err)
	}

	user, err := f.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	sess, err := f.sessions.Establish(ctx, user.ID, adapter.Name())
	if err != nil {
		return nil, err
	}

	return &CallbackResult{
		Session:        sess,
		User:           user,
		RedirectTarget: authState.RedirectTarget,
	}, nil
}

func (f *Flow) lookupProvider(name string) (provider.Adapter, error) {
	adapter, err := f.providers.Get(name)
	if err == nil {
		return adapter, nil
	}
	if knownProviders[name] {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderDisabled, name)
	}
	return nil, err
}

// resolveRedirect validates the post-login target against the allow-list
// so the callback can never bounce the browser to an attacker host.
// Relative paths are always allowed.
func (f *Flow) resolveRedirect(target string) (string, error) {
	if target == "" {
		return f.cfg.DefaultRedirect, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrRedirectNotAllowed, target)
	}
	if u.Host == "" && u.Scheme == "" {
		return target, nil
	}
	for _, host := range f.cfg.AllowedRedirectHosts {
		if u.Host == host {
			return target, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrRedirectNotAllowed, target)
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func codeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
