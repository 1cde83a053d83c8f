// Package domain contains the core types shared across feature packages.
package domain

import "time"

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

// Incident statuses. Transitions only move forward:
// ONGOING -> MITIGATED -> CLOSED, or ONGOING -> CLOSED.
const (
	IncidentOngoing   IncidentStatus = "ONGOING"
	IncidentMitigated IncidentStatus = "MITIGATED"
	IncidentClosed    IncidentStatus = "CLOSED"
)

// IsValid checks if the status is a known incident status.
func (s IncidentStatus) IsValid() bool {
	return s == IncidentOngoing || s == IncidentMitigated || s == IncidentClosed
}

// CanTransitionTo reports whether moving to next is a forward transition.
func (s IncidentStatus) CanTransitionTo(next IncidentStatus) bool {
	switch s {
	case IncidentOngoing:
		return next == IncidentMitigated || next == IncidentClosed
	case IncidentMitigated:
		return next == IncidentClosed
	}
	return false
}

// Incident is the system-of-record for one tracked outage. It is tied 1:1 to
// the chat channel created for it: ID is the channel id, and together with
// TeamID forms the immutable composite key.
type Incident struct {
	TeamID     string         `json:"team_id"`
	ID         string         `json:"incident_id"`
	Name       string         `json:"name"`
	Status     IncidentStatus `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	Resolution string         `json:"resolution,omitempty"`
	Ticket     *Resource      `json:"ticket,omitempty"`
	Call       *Resource      `json:"call,omitempty"`
}

// NewIncident creates an ongoing incident started now.
func NewIncident(teamID, incidentID, name string, now time.Time) *Incident {
	return &Incident{
		TeamID:    teamID,
		ID:        incidentID,
		Name:      name,
		Status:    IncidentOngoing,
		StartedAt: now,
	}
}

// HasTicket reports whether a ticket resource was created for this incident.
func (i *Incident) HasTicket() bool {
	return i.Ticket != nil && i.Ticket.Link != ""
}

// HasCall reports whether a call resource was created for this incident.
func (i *Incident) HasCall() bool {
	return i.Call != nil && i.Call.Link != ""
}

// FromToday compares the incident's start date with now's calendar date.
// Both are evaluated in loc, so the "same day" policy follows the
// configured timezone rather than the server's.
func (i *Incident) FromToday(now time.Time, loc *time.Location) bool {
	if i.StartedAt.IsZero() {
		return false
	}
	sy, sm, sd := i.StartedAt.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	return sy == ny && sm == nm && sd == nd
}
