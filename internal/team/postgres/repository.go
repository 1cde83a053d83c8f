// Package postgres provides PostgreSQL implementation of the team repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/team"
)

// Repository implements the team.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetSettings retrieves the full settings record for a workspace, including
// the list of providers it has completed an OAuth flow with.
func (r *Repository) GetSettings(ctx context.Context, teamID string) (*domain.TeamSettings, error) {
	query := `
		SELECT team_id, bot_token, responders, COALESCE(oncall, '')
		FROM teams
		WHERE team_id = $1
	`
	var settings domain.TeamSettings
	err := r.db.QueryRow(ctx, query, teamID).Scan(
		&settings.TeamID,
		&settings.BotToken,
		&settings.Responders,
		&settings.Oncall,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, team.ErrTeamNotFound
		}
		return nil, fmt.Errorf("get team settings: %w", err)
	}

	providers, err := r.AuthorizedProviders(ctx, teamID)
	if err != nil {
		return nil, err
	}
	settings.AuthorizedProviders = providers

	return &settings, nil
}

// SaveBotToken upserts the workspace row with its bot token. This is the
// first write for a team, performed when the Slack app is installed.
func (r *Repository) SaveBotToken(ctx context.Context, teamID, token string) error {
	query := `
		INSERT INTO teams (team_id, bot_token)
		VALUES ($1, $2)
		ON CONFLICT (team_id) DO UPDATE
		SET bot_token = EXCLUDED.bot_token, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, teamID, token); err != nil {
		return fmt.Errorf("save bot token: %w", err)
	}
	return nil
}

// BotToken resolves the bot token used to call the chat API for a workspace.
func (r *Repository) BotToken(ctx context.Context, teamID string) (string, error) {
	query := `SELECT bot_token FROM teams WHERE team_id = $1`
	var token string
	err := r.db.QueryRow(ctx, query, teamID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", team.ErrTeamNotFound
		}
		return "", fmt.Errorf("get bot token: %w", err)
	}
	return token, nil
}

// AddResponders appends the given IDs to the responder array, skipping
// any that are already present, and returns the updated list.
func (r *Repository) AddResponders(ctx context.Context, teamID string, ids []string) ([]string, error) {
	query := `
		UPDATE teams
		SET responders = (
			SELECT ARRAY(
				SELECT DISTINCT unnest(responders || $2::text[])
			)
		), updated_at = NOW()
		WHERE team_id = $1
		RETURNING responders
	`
	var responders []string
	err := r.db.QueryRow(ctx, query, teamID, ids).Scan(&responders)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, team.ErrTeamNotFound
		}
		return nil, fmt.Errorf("add responders: %w", err)
	}
	return responders, nil
}

// RemoveResponders drops the given IDs from the responder array and
// returns the updated list.
func (r *Repository) RemoveResponders(ctx context.Context, teamID string, ids []string) ([]string, error) {
	query := `
		UPDATE teams
		SET responders = (
			SELECT COALESCE(ARRAY(
				SELECT unnest(responders) EXCEPT SELECT unnest($2::text[])
			), '{}')
		), updated_at = NOW()
		WHERE team_id = $1
		RETURNING responders
	`
	var responders []string
	err := r.db.QueryRow(ctx, query, teamID, ids).Scan(&responders)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, team.ErrTeamNotFound
		}
		return nil, fmt.Errorf("remove responders: %w", err)
	}
	return responders, nil
}

// GetResponders returns the configured responder IDs for a workspace.
func (r *Repository) GetResponders(ctx context.Context, teamID string) ([]string, error) {
	query := `SELECT responders FROM teams WHERE team_id = $1`
	var responders []string
	err := r.db.QueryRow(ctx, query, teamID).Scan(&responders)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, team.ErrTeamNotFound
		}
		return nil, fmt.Errorf("get responders: %w", err)
	}
	return responders, nil
}

// SetOncall records the user currently on call.
func (r *Repository) SetOncall(ctx context.Context, teamID, userID string) error {
	query := `UPDATE teams SET oncall = $2, updated_at = NOW() WHERE team_id = $1`
	result, err := r.db.Exec(ctx, query, teamID, userID)
	if err != nil {
		return fmt.Errorf("set on-call: %w", err)
	}
	if result.RowsAffected() == 0 {
		return team.ErrTeamNotFound
	}
	return nil
}

// GetOncall returns the on-call user ID, or an empty string when no
// on-call is configured.
func (r *Repository) GetOncall(ctx context.Context, teamID string) (string, error) {
	query := `SELECT COALESCE(oncall, '') FROM teams WHERE team_id = $1`
	var oncall string
	err := r.db.QueryRow(ctx, query, teamID).Scan(&oncall)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", team.ErrTeamNotFound
		}
		return "", fmt.Errorf("get on-call: %w", err)
	}
	return oncall, nil
}

// AuthorizedProviders returns the names of providers this workspace has
// stored credentials for.
func (r *Repository) AuthorizedProviders(ctx context.Context, teamID string) ([]string, error) {
	query := `
		SELECT provider
		FROM integrations
		WHERE team_id = $1
		ORDER BY provider
	`
	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("list authorized providers: %w", err)
	}
	defer rows.Close()

	providers := make([]string, 0)
	for rows.Next() {
		var provider string
		if err := rows.Scan(&provider); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, provider)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}

	return providers, nil
}

// GetIntegration retrieves the stored credential record for a provider.
// Returns (nil, nil) when no record exists so callers can distinguish
// "never authorized" from storage failures.
func (r *Repository) GetIntegration(ctx context.Context, teamID, provider string) (*domain.Integration, error) {
	query := `
		SELECT team_id, provider, capability, account_id, access_token, refresh_token, expires_at
		FROM integrations
		WHERE team_id = $1 AND provider = $2
	`
	var integ domain.Integration
	err := r.db.QueryRow(ctx, query, teamID, provider).Scan(
		&integ.TeamID,
		&integ.Provider,
		&integ.Capability,
		&integ.AccountID,
		&integ.Credential.AccessToken,
		&integ.Credential.RefreshToken,
		&integ.Credential.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get integration: %w", err)
	}
	return &integ, nil
}

// SaveIntegration upserts the full credential record for a provider.
func (r *Repository) SaveIntegration(ctx context.Context, integ *domain.Integration) error {
	query := `
		INSERT INTO integrations (team_id, provider, capability, account_id, access_token, refresh_token, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (team_id, provider) DO UPDATE
		SET capability = EXCLUDED.capability,
		    account_id = EXCLUDED.account_id,
		    access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		integ.TeamID,
		integ.Provider,
		integ.Capability,
		integ.AccountID,
		integ.Credential.AccessToken,
		integ.Credential.RefreshToken,
		integ.Credential.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save integration: %w", err)
	}
	return nil
}

// SaveCredential updates only the token fields of an existing record,
// written after a refresh.
func (r *Repository) SaveCredential(ctx context.Context, teamID, provider string, cred domain.OAuthCredential) error {
	query := `
		UPDATE integrations
		SET access_token = $3, refresh_token = $4, expires_at = $5, updated_at = NOW()
		WHERE team_id = $1 AND provider = $2
	`
	result, err := r.db.Exec(ctx, query, teamID, provider,
		cred.AccessToken, cred.RefreshToken, cred.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	if result.RowsAffected() == 0 {
		return team.ErrIntegrationNotFound
	}
	return nil
}
