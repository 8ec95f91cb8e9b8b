package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/providerpath/providerpath-sso/internal/config"
	"github.com/providerpath/providerpath-sso/internal/domain"
)

const graphMeURL = "https://graph.facebook.com/v19.0/me"

// Provider authenticates users against Facebook Login and reads the
// profile from the Graph API.
type Provider struct {
	oauthConfig *oauth2.Config
	httpClient  *http.Client
}

func New(creds config.ProviderCredentials) (*Provider, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RedirectURL == "" {
		return nil, errors.New("facebook oauth config missing required fields")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURL,
		Endpoint:     facebook.Endpoint,
		Scopes:       []string{"public_profile", "email"},
	}

	return &Provider{
		oauthConfig: oauthCfg,
		httpClient:  http.DefaultClient,
	}, nil
}

func (p *Provider) Name() string {
	return domain.ProviderFacebook
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
		return nil, fmt.Errorf("facebook token exchange failed: %w", err)
	}

	profile, err := p.fetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, errors.New("facebook profile missing id")
	}

	return &domain.ExternalIdentity{
		Provider:   domain.ProviderFacebook,
		ExternalID: profile.ID,
		Email:      profile.Email,
		// Facebook only returns addresses it has confirmed.
		EmailVerified: profile.Email != "",
		DisplayName:   profile.Name,
		AvatarURL:     profile.Picture.Data.URL,
		AccessToken:   token.AccessToken,
		RefreshToken:  token.RefreshToken,
	}, nil
}

type graphProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

func (p *Provider) fetchProfile(ctx context.Context, token *oauth2.Token) (*graphProfile, error) {
	q := url.Values{}
	q.Set("fields", "id,name,email,picture")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, graphMeURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facebook graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facebook graph returned status %d", resp.StatusCode)
	}

	var profile graphProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode facebook profile: %w", err)
	}
	return &profile, nil
}
