// Package postgres provides PostgreSQL implementation of the incident repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/incident"
)

// Repository implements the incident.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateIncident inserts a new incident row keyed by (team_id, incident_id).
func (r *Repository) CreateIncident(ctx context.Context, inc *domain.Incident) error {
	query := `
		INSERT INTO incidents (team_id, incident_id, name, status, started_at, resolution,
			ticket_provider, ticket_link, ticket_key, call_provider, call_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var ticketProvider, ticketLink, ticketKey, callProvider, callLink string
	if inc.Ticket != nil {
		ticketProvider = inc.Ticket.Provider
		ticketLink = inc.Ticket.Link
		ticketKey = inc.Ticket.Key
	}
	if inc.Call != nil {
		callProvider = inc.Call.Provider
		callLink = inc.Call.Link
	}

	_, err := r.db.Exec(ctx, query,
		inc.TeamID,
		inc.ID,
		inc.Name,
		inc.Status,
		inc.StartedAt,
		inc.Resolution,
		ticketProvider,
		ticketLink,
		ticketKey,
		callProvider,
		callLink,
	)
	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// GetIncident retrieves an incident by its composite key.
func (r *Repository) GetIncident(ctx context.Context, teamID, incidentID string) (*domain.Incident, error) {
	query := `
		SELECT team_id, incident_id, name, status, started_at, resolution,
			ticket_provider, ticket_link, ticket_key, call_provider, call_link
		FROM incidents
		WHERE team_id = $1 AND incident_id = $2
	`
	inc, err := scanIncident(r.db.QueryRow(ctx, query, teamID, incidentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incident.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

// ListIncidents retrieves all incidents for a team, newest first.
func (r *Repository) ListIncidents(ctx context.Context, teamID string) ([]domain.Incident, error) {
	query := `
		SELECT team_id, incident_id, name, status, started_at, resolution,
			ticket_provider, ticket_link, ticket_key, call_provider, call_link
		FROM incidents
		WHERE team_id = $1
		ORDER BY started_at DESC
	`
	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]domain.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, *inc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	return incidents, nil
}

// UpdateStatus conditionally updates an incident's status. The row must
// exist: a zero rows-affected result maps to ErrIncidentNotFound so a close
// on a nonexistent incident never creates a row.
func (r *Repository) UpdateStatus(ctx context.Context, teamID, incidentID string, status domain.IncidentStatus, resolution string) error {
	if !status.IsValid() {
		return fmt.Errorf("update incident status: unknown status %q", status)
	}
	query := `
		UPDATE incidents
		SET status = $3,
		    resolution = CASE WHEN $4 <> '' THEN $4 ELSE resolution END,
		    updated_at = NOW()
		WHERE team_id = $1 AND incident_id = $2
	`
	result, err := r.db.Exec(ctx, query, teamID, incidentID, status, resolution)
	if err != nil {
		return fmt.Errorf("update incident status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return incident.ErrIncidentNotFound
	}
	return nil
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	var ticketProvider, ticketLink, ticketKey, callProvider, callLink string

	err := row.Scan(
		&inc.TeamID,
		&inc.ID,
		&inc.Name,
		&inc.Status,
		&inc.StartedAt,
		&inc.Resolution,
		&ticketProvider,
		&ticketLink,
		&ticketKey,
		&callProvider,
		&callLink,
	)
	if err != nil {
		return nil, err
	}

	if ticketLink != "" {
		inc.Ticket = &domain.Resource{
			Provider:   ticketProvider,
			Capability: domain.CapabilityTicket,
			Link:       ticketLink,
			Key:        ticketKey,
		}
	}
	if callLink != "" {
		inc.Call = &domain.Resource{
			Provider:   callProvider,
			Capability: domain.CapabilityCall,
			Link:       callLink,
		}
	}

	return &inc, nil
}
