// Package notify fans a new-incident announcement out to the team's
// responders.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/pkg/ctxlog"
	"github.com/piraidev/sereno/internal/slack"
)

// Transport is the subset of the chat client the coordinator needs.
type Transport interface {
	PostBlocks(ctx context.Context, teamID, channelID string, msg slack.Message) error
	InviteMembers(ctx context.Context, teamID, channelID string, userIDs []string) error
	JoinChannel(ctx context.Context, teamID, channelID string) error
}

// ResponderSource resolves the effective responder set for a team:
// explicit responders merged with the current on-call, deduplicated.
type ResponderSource interface {
	RespondersWithOncall(ctx context.Context, teamID string) ([]string, error)
	Oncall(ctx context.Context, teamID string) (string, error)
}

// MessageBuilder renders the announcement posted to the incident channel
// and mirrored to every channel-kind responder.
type MessageBuilder interface {
	NewIncidentMessage(inc *domain.Incident, oncall string) slack.Message
}

// Coordinator notifies responders about a new incident.
type Coordinator struct {
	transport  Transport
	responders ResponderSource
	builder    MessageBuilder
	logger     *slog.Logger
}

func NewCoordinator(transport Transport, responders ResponderSource, builder MessageBuilder, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		transport:  transport,
		responders: responders,
		builder:    builder,
		logger:     logger,
	}
}

// Announce posts the incident message to the incident channel, invites all
// user-kind responders in one batched call, and mirrors the message into
// each channel-kind responder. A failed join or post for one responder
// channel is logged and skipped; the remaining responders are still
// notified. Only the initial announcement post can fail the call.
func (c *Coordinator) Announce(ctx context.Context, inc *domain.Incident) error {
	logger := ctxlog.FromContext(ctx)

	oncall, err := c.responders.Oncall(ctx, inc.TeamID)
	if err != nil {
		logger.Warn("could not resolve on-call", "team_id", inc.TeamID, "error", err)
	}
	msg := c.builder.NewIncidentMessage(inc, oncall)

	if err := c.transport.PostBlocks(ctx, inc.TeamID, inc.ID, msg); err != nil {
		return fmt.Errorf("announce in incident channel: %w", err)
	}

	all, err := c.responders.RespondersWithOncall(ctx, inc.TeamID)
	if err != nil {
		return fmt.Errorf("resolve responders: %w", err)
	}

	users, channels := partition(all)

	if len(users) > 0 {
		if err := c.transport.InviteMembers(ctx, inc.TeamID, inc.ID, users); err != nil {
			logger.Warn("responder invite failed",
				"team_id", inc.TeamID, "incident_id", inc.ID, "error", err)
		}
	}

	for _, channelID := range channels {
		if err := c.transport.JoinChannel(ctx, inc.TeamID, channelID); err != nil {
			logger.Warn("skipping responder channel, join failed",
				"team_id", inc.TeamID, "channel_id", channelID, "error", err)
			continue
		}
		if err := c.transport.PostBlocks(ctx, inc.TeamID, channelID, msg); err != nil {
			logger.Warn("failed to notify responder channel",
				"team_id", inc.TeamID, "channel_id", channelID, "error", err)
		}
	}

	return nil
}

// partition splits responder IDs into user-kind and channel-kind by their
// ID prefix. IDs of neither kind are dropped.
func partition(ids []string) (users, channels []string) {
	for _, id := range ids {
		r := domain.Responder{ID: id}
		switch {
		case r.IsUser():
			users = append(users, id)
		case r.IsChannel():
			channels = append(channels, id)
		}
	}
	return users, channels
}
