// Package team manages per-workspace settings: bot token, responders,
// on-call and provider authorizations.
package team

import (
	"context"

	"github.com/piraidev/sereno/internal/domain"
)

// Repository defines the interface for team settings data access.
type Repository interface {
	// Settings
	GetSettings(ctx context.Context, teamID string) (*domain.TeamSettings, error)
	SaveBotToken(ctx context.Context, teamID, token string) error

	// Responders and on-call
	AddResponders(ctx context.Context, teamID string, ids []string) ([]string, error)
	RemoveResponders(ctx context.Context, teamID string, ids []string) ([]string, error)
	GetResponders(ctx context.Context, teamID string) ([]string, error)
	SetOncall(ctx context.Context, teamID, userID string) error
	GetOncall(ctx context.Context, teamID string) (string, error)

	// Provider integrations
	AuthorizedProviders(ctx context.Context, teamID string) ([]string, error)
	GetIntegration(ctx context.Context, teamID, provider string) (*domain.Integration, error)
	SaveIntegration(ctx context.Context, integ *domain.Integration) error
	SaveCredential(ctx context.Context, teamID, provider string, cred domain.OAuthCredential) error

	// BotToken resolves the workspace bot token for the transport client.
	BotToken(ctx context.Context, teamID string) (string, error)
}
