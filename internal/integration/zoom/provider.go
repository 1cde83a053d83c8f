// Package zoom implements the call capability against the Zoom REST API
// with OAuth 2.0 credentials.
package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/integration"
	"github.com/piraidev/sereno/internal/pkg/ctxlog"
	"github.com/piraidev/sereno/internal/pkg/metrics"
)

const (
	defaultAuthBaseURL = "https://zoom.us"
	defaultAPIBaseURL  = "https://api.zoom.us/v2"
	defaultTimeout     = 10 * time.Second

	providerName = "zoom"

	// meeting type 2 is a scheduled meeting
	meetingTypeScheduled = 2
)

// Config holds Zoom provider configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthBaseURL  string // override for tests
	APIBaseURL   string // override for tests
	Timeout      time.Duration
}

// Provider implements integration.CallProvider for Zoom.
type Provider struct {
	config     Config
	httpClient *http.Client
	tokens     *integration.TokenManager
}

// NewProvider creates a Zoom call provider.
func NewProvider(config Config, tokens *integration.TokenManager) *Provider {
	if config.AuthBaseURL == "" {
		config.AuthBaseURL = defaultAuthBaseURL
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Provider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		tokens:     tokens,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return providerName }

// Capability returns the capability this provider serves.
func (p *Provider) Capability() domain.Capability { return domain.CapabilityCall }

// CreateCall starts a join-before-host meeting for the authorizing user.
// Any failure is absorbed and logged; the caller sees a nil resource.
func (p *Provider) CreateCall(ctx context.Context, integ *domain.Integration) *domain.Resource {
	logger := ctxlog.FromContext(ctx)

	token, err := p.tokens.EnsureAccessToken(ctx, integ, p)
	if err != nil {
		logger.Error("zoom meeting not created", "team_id", integ.TeamID, "error", err)
		metrics.ProviderRequests.WithLabelValues(providerName, "create_call", "failure").Inc()
		return nil
	}

	userID, err := p.currentUserID(ctx, token)
	if err != nil {
		logger.Error("zoom user lookup failed", "team_id", integ.TeamID, "error", err)
		metrics.ProviderRequests.WithLabelValues(providerName, "create_call", "failure").Inc()
		return nil
	}

	reqBody := meetingRequest{
		Type: meetingTypeScheduled,
	}
	reqBody.Settings.JoinBeforeHost = true
	reqBody.Settings.JBHTime = 0

	payload, err := json.Marshal(reqBody)
	if err != nil {
		logger.Error("zoom request marshal failed", "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.APIBaseURL+"/users/"+url.PathEscape(userID)+"/meetings", bytes.NewReader(payload))
	if err != nil {
		logger.Error("zoom request build failed", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.Error("zoom meeting request failed", "team_id", integ.TeamID, "error", err)
		metrics.ProviderRequests.WithLabelValues(providerName, "create_call", "failure").Inc()
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		logger.Error("zoom meeting could not be created",
			"team_id", integ.TeamID,
			"status", resp.StatusCode,
			"body", string(body),
		)
		metrics.ProviderRequests.WithLabelValues(providerName, "create_call", "failure").Inc()
		return nil
	}

	var meeting struct {
		ID      int64  `json:"id"`
		JoinURL string `json:"join_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meeting); err != nil {
		logger.Error("zoom response decode failed", "error", err)
		metrics.ProviderRequests.WithLabelValues(providerName, "create_call", "failure").Inc()
		return nil
	}

	metrics.ProviderRequests.WithLabelValues(providerName, "create_call", "success").Inc()

	return &domain.Resource{
		Provider:   providerName,
		Capability: domain.CapabilityCall,
		Key:        fmt.Sprintf("%d", meeting.ID),
		Link:       meeting.JoinURL,
	}
}

// RefreshCredential exchanges the refresh token for a new access token.
// Zoom rotates refresh tokens, so the returned credential carries the new
// one when present.
func (p *Provider) RefreshCredential(ctx context.Context, cred domain.OAuthCredential) (domain.OAuthCredential, error) {
	resp, err := p.tokenExchange(ctx, url.Values{
		"grant_type":    []string{"refresh_token"},
		"refresh_token": []string{cred.RefreshToken},
	})
	if err != nil {
		return domain.OAuthCredential{}, err
	}

	refreshToken := resp.RefreshToken
	if refreshToken == "" {
		refreshToken = cred.RefreshToken
	}

	return domain.OAuthCredential{
		AccessToken:  resp.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

// ExchangeCode exchanges an authorization code for a credential.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (domain.OAuthCredential, error) {
	resp, err := p.tokenExchange(ctx, url.Values{
		"grant_type":   []string{"authorization_code"},
		"code":         []string{code},
		"redirect_uri": []string{p.config.RedirectURL},
	})
	if err != nil {
		return domain.OAuthCredential{}, err
	}

	return domain.OAuthCredential{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

type meetingRequest struct {
	Type     int `json:"type"`
	Settings struct {
		JoinBeforeHost bool `json:"join_before_host"`
		JBHTime        int  `json:"jbh_time"`
	} `json:"settings"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (p *Provider) currentUserID(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.APIBaseURL+"/users/me", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get current user: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decode user response: %w", err)
	}
	if user.ID == "" {
		return "", errors.New("zoom returned no user id")
	}
	return user.ID, nil
}

// tokenExchange posts to the OAuth token endpoint with HTTP basic auth,
// as Zoom requires for both code and refresh grants.
func (p *Provider) tokenExchange(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.AuthBaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.config.ClientID, p.config.ClientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(raw))
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}
	return &tr, nil
}
