package generic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/providerpath/providerpath-sso/internal/config"
	"github.com/providerpath/providerpath-sso/internal/domain"
)

// Provider is a URL-configured OAuth2 adapter for identity providers
// without a dedicated integration. It expects the userinfo endpoint to
// return a JSON object with at least an id or sub field.
type Provider struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

func New(cfg config.GenericOAuth2) (*Provider, error) {
	if !cfg.Configured() {
		return nil, errors.New("generic oauth2 config missing required fields")
	}
	if cfg.UserInfoURL == "" {
		return nil, errors.New("generic oauth2 config missing userinfo url")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
		Scopes: cfg.Scopes,
	}

	return &Provider{
		oauthConfig: oauthCfg,
		userInfoURL: cfg.UserInfoURL,
		httpClient:  http.DefaultClient,
	}, nil
}

func (p *Provider) Name() string {
	return domain.ProviderOAuth2
}

func (p *Provider) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *Provider) Exchange(ctx context.Context, code string, codeVerifier string) (*domain.ExternalIdentity, error) {
	token, err := p.oauthConfig.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("oauth2 token exchange failed: %w", err)
	}

	profile, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	externalID := profile.ID
	if externalID == "" {
		externalID = profile.Subject
	}
	if externalID == "" {
		return nil, errors.New("oauth2 userinfo missing id")
	}

	return &domain.ExternalIdentity{
		Provider:      domain.ProviderOAuth2,
		ExternalID:    externalID,
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
		DisplayName:   profile.Name,
		AvatarURL:     profile.Picture,
		AccessToken:   token.AccessToken,
		RefreshToken:  token.RefreshToken,
	}, nil
}

type userInfo struct {
	ID            string `json:"id"`
	Subject       string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

func (p *Provider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth2 userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oauth2 userinfo returned status %d", resp.StatusCode)
	}

	var profile userInfo
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode oauth2 userinfo: %w", err)
	}
	return &profile, nil
}
