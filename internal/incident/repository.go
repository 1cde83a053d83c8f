// Package incident drives the incident lifecycle: creation with external
// resources, ongoing/today views, comments and conditional close.
package incident

import (
	"context"

	"github.com/piraidev/sereno/internal/domain"
)

// Repository defines the interface for incident data access.
type Repository interface {
	CreateIncident(ctx context.Context, inc *domain.Incident) error
	GetIncident(ctx context.Context, teamID, incidentID string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, teamID string) ([]domain.Incident, error)

	// UpdateStatus performs a conditional status update: the row must
	// already exist, otherwise ErrIncidentNotFound is returned and no row
	// is created.
	UpdateStatus(ctx context.Context, teamID, incidentID string, status domain.IncidentStatus, resolution string) error
}
