package domain

import "time"

// Capability is the role an integration plays for an incident.
type Capability string

// Capabilities. Each team has at most one provider per capability.
const (
	CapabilityTicket Capability = "ticket"
	CapabilityCall   Capability = "call"
)

// OAuthCredential holds the token triple obtained from a provider's OAuth
// flow. Credentials are owned per-team and refreshed in place.
type OAuthCredential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the credential carries all three parts.
func (c OAuthCredential) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != "" && !c.ExpiresAt.IsZero()
}

// Expired reports whether the access token must be refreshed before use.
// An expiry exactly at now counts as expired.
func (c OAuthCredential) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Integration is a team's authorization for one provider.
type Integration struct {
	TeamID     string          `json:"team_id"`
	Provider   string          `json:"provider"`
	Capability Capability      `json:"capability"`
	AccountID  string          `json:"account_id,omitempty"`
	Credential OAuthCredential `json:"credential"`
}

// Valid reports whether the integration is usable: the credential must be
// complete, and ticket integrations additionally need the provider account
// id (it namespaces every API URL).
func (i *Integration) Valid() bool {
	if !i.Credential.Valid() {
		return false
	}
	if i.Capability == CapabilityTicket && i.AccountID == "" {
		return false
	}
	return true
}

// Resource is an externally created ticket or call, owned by one incident.
type Resource struct {
	Provider   string     `json:"provider"`
	Capability Capability `json:"capability"`
	Link       string     `json:"link"`
	Key        string     `json:"key,omitempty"`
}
