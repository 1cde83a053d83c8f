package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/piraidev/sereno/internal/pkg/ctxlog"
	"github.com/piraidev/sereno/internal/pkg/metrics"

	"github.com/piraidev/sereno/internal/domain"
)

// CredentialStore persists refreshed credentials back to the team record.
type CredentialStore interface {
	SaveCredential(ctx context.Context, teamID, provider string, cred domain.OAuthCredential) error
}

// TokenManager returns a valid access token for an integration, refreshing
// it through the provider first when expired. There is no background
// refresh: the check runs immediately before every authenticated call.
type TokenManager struct {
	store CredentialStore
	now   func() time.Time
}

// NewTokenManager creates a token manager.
func NewTokenManager(store CredentialStore) *TokenManager {
	return &TokenManager{store: store, now: time.Now}
}

// EnsureAccessToken returns the cached access token when its expiry is
// strictly in the future. Otherwise it refreshes through src, updates the
// integration in place, persists the new credential for the team and
// returns the fresh token. On refresh failure the stored credential is
// never partially overwritten.
func (m *TokenManager) EnsureAccessToken(ctx context.Context, integ *domain.Integration, src TokenSource) (string, error) {
	if !integ.Credential.ExpiresAt.IsZero() && !integ.Credential.Expired(m.now()) {
		return integ.Credential.AccessToken, nil
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("access token expired, refreshing",
		"team_id", integ.TeamID,
		"provider", src.Name(),
	)

	refreshed, err := src.RefreshCredential(ctx, integ.Credential)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(src.Name(), "failure").Inc()
		return "", fmt.Errorf("%w: %s: %v", ErrCredentialRefreshFailed, src.Name(), err)
	}

	integ.Credential = refreshed

	if err := m.store.SaveCredential(ctx, integ.TeamID, src.Name(), refreshed); err != nil {
		// The token is valid even if the write failed; the next call
		// will just refresh again.
		logger.Error("failed to persist refreshed credential",
			"team_id", integ.TeamID,
			"provider", src.Name(),
			"error", err,
		)
	}

	metrics.TokenRefreshes.WithLabelValues(src.Name(), "success").Inc()
	logger.Info("token refreshed and saved", "team_id", integ.TeamID, "provider", src.Name())

	return refreshed.AccessToken, nil
}
