package team

import "errors"

var (
	// ErrTeamNotFound is returned when a workspace has never installed the app.
	ErrTeamNotFound = errors.New("team not found")
	// ErrIntegrationNotFound is returned when updating a credential for a
	// provider the team never authorized.
	ErrIntegrationNotFound = errors.New("integration not found")
)
