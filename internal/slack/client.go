// Package slack provides a thin Slack Web API client used as the chat
// transport. Every call resolves the workspace bot token through a
// TokenProvider and reports Slack's ok/error envelope as a typed error.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://slack.com/api"
	defaultTimeout = 10 * time.Second

	// Slack Web API tier 3 allows ~50 requests per minute per method.
	// One shared limiter keeps the bot comfortably under that.
	defaultRateLimit = rate.Limit(20)
	defaultBurst     = 10
)

// TokenProvider resolves the bot token for a workspace.
type TokenProvider interface {
	BotToken(ctx context.Context, teamID string) (string, error)
}

// Config holds Slack client configuration.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	RateLimit    rate.Limit
	Burst        int
}

// Client calls the Slack Web API.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     TokenProvider
}

// NewClient creates a Slack Web API client.
func NewClient(config Config, tokens TokenProvider) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RateLimit == 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.Burst == 0 {
		config.Burst = defaultBurst
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(config.RateLimit, config.Burst),
		tokens:     tokens,
	}
}

// APIError is a Slack "ok": false response.
type APIError struct {
	Method string
	Reason string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Reason)
}

// apiResponse is the envelope every Web API method returns.
type apiResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Channel *struct {
		ID string `json:"id"`
	} `json:"channel"`
	AccessToken string `json:"access_token"`
	Team        *struct {
		ID string `json:"id"`
	} `json:"team"`
}

// PostMessage posts a plain text message to a channel or user.
func (c *Client) PostMessage(ctx context.Context, teamID, channelID, text string) error {
	_, err := c.call(ctx, teamID, "chat.postMessage", map[string]any{
		"channel": channelID,
		"text":    text,
	})
	return err
}

// PostBlocks posts a Block Kit message. The text is used as the
// notification fallback.
func (c *Client) PostBlocks(ctx context.Context, teamID, channelID string, msg Message) error {
	_, err := c.call(ctx, teamID, "chat.postMessage", map[string]any{
		"channel": channelID,
		"text":    msg.Text,
		"blocks":  msg.Blocks,
	})
	return err
}

// CreateChannel creates a public channel and returns its id.
func (c *Client) CreateChannel(ctx context.Context, teamID, name string) (string, error) {
	resp, err := c.call(ctx, teamID, "conversations.create", map[string]any{
		"name": name,
	})
	if err != nil {
		return "", err
	}
	if resp.Channel == nil || resp.Channel.ID == "" {
		return "", &APIError{Method: "conversations.create", Reason: "missing channel id"}
	}
	return resp.Channel.ID, nil
}

// InviteMembers invites users to a channel in one batched call.
func (c *Client) InviteMembers(ctx context.Context, teamID, channelID string, userIDs []string) error {
	_, err := c.call(ctx, teamID, "conversations.invite", map[string]any{
		"channel": channelID,
		"users":   strings.Join(userIDs, ","),
	})
	return err
}

// JoinChannel joins the bot to a channel.
func (c *Client) JoinChannel(ctx context.Context, teamID, channelID string) error {
	_, err := c.call(ctx, teamID, "conversations.join", map[string]any{
		"channel": channelID,
	})
	return err
}

// SetTopic sets a channel topic.
func (c *Client) SetTopic(ctx context.Context, teamID, channelID, topic string) error {
	_, err := c.call(ctx, teamID, "conversations.setTopic", map[string]any{
		"channel": channelID,
		"topic":   topic,
	})
	return err
}

// OpenView opens a modal in response to an interaction trigger.
func (c *Client) OpenView(ctx context.Context, teamID, triggerID string, view View) error {
	_, err := c.call(ctx, teamID, "views.open", map[string]any{
		"trigger_id": triggerID,
		"view":       view,
	})
	return err
}

// OAuthAccess exchanges an app-install code for a workspace bot token.
// Returns the team id and the token.
func (c *Client) OAuthAccess(ctx context.Context, code string) (teamID, accessToken string, err error) {
	form := url.Values{}
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/oauth.v2.access", strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(ctx, req)
	if err != nil {
		return "", "", err
	}

	if !resp.OK {
		return "", "", &APIError{Method: "oauth.v2.access", Reason: resp.Error}
	}
	if resp.Team == nil || resp.Team.ID == "" || resp.AccessToken == "" {
		return "", "", &APIError{Method: "oauth.v2.access", Reason: "missing team or token"}
	}
	return resp.Team.ID, resp.AccessToken, nil
}

// Respond posts to an interaction response_url, replacing the original
// message with text.
func (c *Client) Respond(ctx context.Context, responseURL, text string) error {
	return c.postResponseURL(ctx, responseURL, map[string]any{
		"replace_original": "true",
		"text":             text,
	})
}

// RespondBlocks posts a Block Kit message to an interaction response_url,
// replacing the original message.
func (c *Client) RespondBlocks(ctx context.Context, responseURL string, msg Message) error {
	return c.postResponseURL(ctx, responseURL, map[string]any{
		"replace_original": "true",
		"text":             msg.Text,
		"blocks":           msg.Blocks,
	})
}

// DeleteOriginal deletes the interactive message a response_url belongs to.
func (c *Client) DeleteOriginal(ctx context.Context, responseURL string) error {
	return c.postResponseURL(ctx, responseURL, map[string]any{
		"delete_original": "true",
	})
}

func (c *Client) postResponseURL(ctx context.Context, responseURL string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post response_url: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("response_url returned status %d", resp.StatusCode)
	}
	return nil
}

// call invokes a JSON Web API method with the team's bot token.
func (c *Client) call(ctx context.Context, teamID, method string, payload map[string]any) (*apiResponse, error) {
	token, err := c.tokens.BotToken(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("resolve bot token: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.OK {
		return nil, &APIError{Method: method, Reason: resp.Error}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("slack returned status %d: %s", httpResp.StatusCode, string(raw))
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}
