package incident

import "errors"

var (
	// ErrIncidentNotFound is returned when an operation targets a
	// (team, incident) pair with no stored row.
	ErrIncidentNotFound = errors.New("incident not found")
	// ErrChannelCreationFailed is returned when the chat transport could
	// not create the incident channel. The creation attempt aborts.
	ErrChannelCreationFailed = errors.New("channel creation failed")
)
