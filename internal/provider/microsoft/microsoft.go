package microsoft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/providerpath/providerpath-sso/internal/config"
	"github.com/providerpath/providerpath-sso/internal/domain"
)

const graphMeURL = "https://graph.microsoft.com/v1.0/me"

// Provider authenticates users against Microsoft Entra ID and reads the
// profile from the Graph API.
type Provider struct {
	oauthConfig *oauth2.Config
	httpClient  *http.Client
}

func New(creds config.ProviderCredentials, tenant string) (*Provider, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RedirectURL == "" {
		return nil, errors.New("microsoft oauth config missing required fields")
	}
	if tenant == "" {
		tenant = "common"
	}

	oauthCfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURL,
		Endpoint:     microsoft.AzureADEndpoint(tenant),
		Scopes:       []string{"openid", "profile", "email", "User.Read"},
	}

	return &Provider{
		oauthConfig: oauthCfg,
		httpClient:  http.DefaultClient,
	}, nil
}

func (p *Provider) Name() string {
	return domain.ProviderMicrosoft
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
		return nil, fmt.Errorf("microsoft token exchange failed: %w", err)
	}

	profile, err := p.fetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, errors.New("microsoft profile missing id")
	}

	email := profile.Mail
	if email == "" {
		email = profile.UserPrincipalName
	}

	return &domain.ExternalIdentity{
		Provider:   domain.ProviderMicrosoft,
		ExternalID: profile.ID,
		Email:      email,
		// Graph exposes only addresses the directory has already
		// validated, so a present address is treated as verified.
		EmailVerified: email != "",
		DisplayName:   profile.DisplayName,
		AccessToken:   token.AccessToken,
		RefreshToken:  token.RefreshToken,
	}, nil
}

type graphProfile struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

func (p *Provider) fetchProfile(ctx context.Context, token *oauth2.Token) (*graphProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, graphMeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("microsoft graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("microsoft graph returned status %d", resp.StatusCode)
	}

	var profile graphProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode microsoft profile: %w", err)
	}
	return &profile, nil
}
