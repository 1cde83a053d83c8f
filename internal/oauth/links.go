package oauth

import "net/url"

// LinksConfig carries the client IDs and redirect URLs needed to build
// provider authorize links.
type LinksConfig struct {
	JiraClientID     string
	JiraRedirectURL  string
	JiraAuthBaseURL  string
	ZoomClientID     string
	ZoomRedirectURL  string
	ZoomAuthBaseURL  string
	SlackClientID    string
	SlackRedirectURL string
}

// Links builds the authorization URLs users follow to connect providers.
type Links struct {
	config LinksConfig
	signer *StateSigner
}

func NewLinks(config LinksConfig, signer *StateSigner) *Links {
	if config.JiraAuthBaseURL == "" {
		config.JiraAuthBaseURL = "https://auth.atlassian.com"
	}
	if config.ZoomAuthBaseURL == "" {
		config.ZoomAuthBaseURL = "https://zoom.us"
	}
	return &Links{config: config, signer: signer}
}

// Jira returns the Atlassian 3LO authorize URL for a team.
func (l *Links) Jira(teamID, userID string) (string, error) {
	state, err := l.signer.Sign(teamID, userID)
	if err != nil {
		return "", err
	}
	q := url.Values{
		"audience":      {"api.atlassian.com"},
		"client_id":     {l.config.JiraClientID},
		"scope":         {"read:jira-work write:jira-work offline_access"},
		"redirect_uri":  {l.config.JiraRedirectURL},
		"state":         {state},
		"response_type": {"code"},
		"prompt":        {"consent"},
	}
	return l.config.JiraAuthBaseURL + "/authorize?" + q.Encode(), nil
}

// Zoom returns the Zoom OAuth authorize URL for a team.
func (l *Links) Zoom(teamID, userID string) (string, error) {
	state, err := l.signer.Sign(teamID, userID)
	if err != nil {
		return "", err
	}
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {l.config.ZoomClientID},
		"redirect_uri":  {l.config.ZoomRedirectURL},
		"state":         {state},
	}
	return l.config.ZoomAuthBaseURL + "/oauth/authorize?" + q.Encode(), nil
}

// SlackInstall returns the workspace install URL for the app itself. No
// state is needed: the workspace identity comes back in the token exchange.
func (l *Links) SlackInstall() string {
	q := url.Values{
		"client_id":    {l.config.SlackClientID},
		"scope":        {"app_mentions:read,channels:manage,channels:join,chat:write,commands,channels:read"},
		"redirect_uri": {l.config.SlackRedirectURL},
	}
	return "https://slack.com/oauth/v2/authorize?" + q.Encode()
}
