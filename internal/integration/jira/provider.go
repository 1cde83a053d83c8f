// Package jira implements the ticket capability against the Jira Cloud
// REST API v2 with OAuth 2.0 (3LO) credentials.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/integration"
	"github.com/piraidev/sereno/internal/pkg/ctxlog"
	"github.com/piraidev/sereno/internal/pkg/metrics"
)

const (
	defaultAuthBaseURL = "https://auth.atlassian.com"
	defaultAPIBaseURL  = "https://api.atlassian.com"
	defaultTimeout     = 10 * time.Second

	providerName = "jira"
	projectKey   = "WAT"
)

// Config holds Jira provider configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthBaseURL  string // override for tests
	APIBaseURL   string // override for tests
	SiteBaseURL  string // host pattern for the tenant, %s is the account id
	Timeout      time.Duration
}

// Provider implements integration.TicketProvider for Jira.
type Provider struct {
	config     Config
	httpClient *http.Client
	tokens     *integration.TokenManager
}

// NewProvider creates a Jira ticket provider.
func NewProvider(config Config, tokens *integration.TokenManager) *Provider {
	if config.AuthBaseURL == "" {
		config.AuthBaseURL = defaultAuthBaseURL
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	if config.SiteBaseURL == "" {
		config.SiteBaseURL = "https://%s.atlassian.net"
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
func (p *Provider) Capability() domain.Capability { return domain.CapabilityTicket }

// CreateTicket opens an incident issue in the team's Jira project.
// Any failure is absorbed and logged; the caller sees a nil resource.
func (p *Provider) CreateTicket(ctx context.Context, integ *domain.Integration) *domain.Resource {
	logger := ctxlog.FromContext(ctx)

	token, err := p.tokens.EnsureAccessToken(ctx, integ, p)
	if err != nil {
		logger.Error("jira ticket not created", "team_id", integ.TeamID, "error", err)
		metrics.ProviderRequests.WithLabelValues(providerName, "create_ticket", "failure").Inc()
		return nil
	}

	summary := fmt.Sprintf("Incident %s", time.Now().Format("Jan-02-2006"))
	reqBody := issueRequest{}
	reqBody.Fields.Project.Key = projectKey
	reqBody.Fields.Summary = summary
	reqBody.Fields.Description = "Outage"
	reqBody.Fields.IssueType.Name = "Task"

	var created struct {
		Key string `json:"key"`
	}
	status, err := p.post(ctx, token, p.issueURL(integ.AccountID, ""), reqBody, &created)
	if err != nil || status != http.StatusCreated {
		logger.Error("jira ticket could not be created",
			"team_id", integ.TeamID,
			"status", status,
			"error", err,
		)
		metrics.ProviderRequests.WithLabelValues(providerName, "create_ticket", "failure").Inc()
		return nil
	}

	metrics.ProviderRequests.WithLabelValues(providerName, "create_ticket", "success").Inc()

	return &domain.Resource{
		Provider:   providerName,
		Capability: domain.CapabilityTicket,
		Key:        created.Key,
		Link:       fmt.Sprintf(p.config.SiteBaseURL+"/browse/%s", integ.AccountID, created.Key),
	}
}

// AddComment appends a comment to an issue and reports a structured result.
func (p *Provider) AddComment(ctx context.Context, integ *domain.Integration, ticketKey, comment string) integration.CommentResult {
	token, err := p.tokens.EnsureAccessToken(ctx, integ, p)
	if err != nil {
		ctxlog.FromContext(ctx).Error("jira comment failed", "team_id", integ.TeamID, "error", err)
		metrics.ProviderRequests.WithLabelValues(providerName, "add_comment", "failure").Inc()
		return integration.CommentFailed("Could not reach the ticket provider")
	}

	reqBody := map[string]string{"body": comment}

	status, err := p.post(ctx, token, p.issueURL(integ.AccountID, ticketKey)+"/comment", reqBody, nil)
	if err != nil || status != http.StatusCreated {
		ctxlog.FromContext(ctx).Error("jira comment request failed",
			"team_id", integ.TeamID,
			"ticket", ticketKey,
			"status", status,
			"error", err,
		)
		metrics.ProviderRequests.WithLabelValues(providerName, "add_comment", "failure").Inc()
		return integration.CommentFailed("Comment request to Jira returned an error")
	}

	metrics.ProviderRequests.WithLabelValues(providerName, "add_comment", "success").Inc()
	return integration.CommentOK()
}

// RefreshCredential exchanges the refresh token for a new access token.
// Jira does not rotate refresh tokens, so the old one is kept.
func (p *Provider) RefreshCredential(ctx context.Context, cred domain.OAuthCredential) (domain.OAuthCredential, error) {
	resp, err := p.tokenExchange(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     p.config.ClientID,
		"client_secret": p.config.ClientSecret,
		"refresh_token": cred.RefreshToken,
	})
	if err != nil {
		return domain.OAuthCredential{}, err
	}

	return domain.OAuthCredential{
		AccessToken:  resp.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

// ExchangeCode exchanges an authorization code for a credential.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (domain.OAuthCredential, error) {
	resp, err := p.tokenExchange(ctx, map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     p.config.ClientID,
		"client_secret": p.config.ClientSecret,
		"code":          code,
		"redirect_uri":  p.config.RedirectURL,
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

// AccessibleAccount returns the tenant name for the authorized site. Jira
// API URLs are namespaced by it.
func (p *Provider) AccessibleAccount(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.config.APIBaseURL+"/oauth/token/accessible-resources", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("accessible resources request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var sites []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sites); err != nil {
		return "", fmt.Errorf("decode accessible resources: %w", err)
	}
	if len(sites) == 0 || sites[0].Name == "" {
		return "", errors.New("jira returned no accessible site for access token")
	}
	return sites[0].Name, nil
}

type issueRequest struct {
	Fields struct {
		Project struct {
			Key string `json:"key"`
		} `json:"project"`
		Summary     string `json:"summary"`
		Description string `json:"description"`
		IssueType   struct {
			Name string `json:"name"`
		} `json:"issuetype"`
	} `json:"fields"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (p *Provider) issueURL(accountID, key string) string {
	base := fmt.Sprintf(p.config.SiteBaseURL+"/rest/api/2/issue", accountID)
	if key == "" {
		return base
	}
	return base + "/" + key
}

func (p *Provider) tokenExchange(ctx context.Context, body map[string]string) (*tokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.AuthBaseURL+"/oauth/token", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

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

func (p *Provider) post(ctx context.Context, token, url string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode == http.StatusCreated {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
