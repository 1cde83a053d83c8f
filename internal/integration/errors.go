package integration

import "errors"

var (
	// ErrIntegrationUnavailable means the team never authorized the
	// provider, or the stored credential is incomplete.
	ErrIntegrationUnavailable = errors.New("integration not available for team")

	// ErrCredentialRefreshFailed means the provider rejected the refresh
	// token exchange. The stored credential is left untouched.
	ErrCredentialRefreshFailed = errors.New("credential refresh failed")
)
