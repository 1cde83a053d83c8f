package domain

import "strings"

// Responder is a user or channel configured to be notified when an incident
// opens. The kind is derived from the Slack id prefix, never stored.
type Responder struct {
	ID string `json:"id"`
}

// IsUser reports whether the responder is a user (U-prefixed id).
func (r Responder) IsUser() bool {
	return strings.HasPrefix(r.ID, "U")
}

// IsChannel reports whether the responder is a channel (C-prefixed id).
func (r Responder) IsChannel() bool {
	return strings.HasPrefix(r.ID, "C")
}

// Responders builds responder values from raw ids.
func Responders(ids []string) []Responder {
	out := make([]Responder, 0, len(ids))
	for _, id := range ids {
		out = append(out, Responder{ID: id})
	}
	return out
}
