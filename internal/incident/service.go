package incident

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/integration"
	"github.com/piraidev/sereno/internal/pkg/ctxlog"
	"github.com/piraidev/sereno/internal/pkg/metrics"
)

// Transport is the chat surface the service creates channels on.
type Transport interface {
	CreateChannel(ctx context.Context, teamID, name string) (string, error)
	SetTopic(ctx context.Context, teamID, channelID, topic string) error
}

// Notifier announces a freshly created incident to its responders.
type Notifier interface {
	Announce(ctx context.Context, inc *domain.Incident) error
}

// StartResult is the outcome of a start request: either a created incident
// or the list of today's ongoing incidents the caller must confirm against.
type StartResult struct {
	Created      *domain.Incident
	OngoingToday []domain.Incident
}

// CommentOutcome is the user-surfaced result of logging a comment.
type CommentOutcome struct {
	OK      bool
	Message string
}

// Service provides business logic for the incident lifecycle.
type Service struct {
	repo      Repository
	registry  *integration.Registry
	transport Transport
	notifier  Notifier
	loc       *time.Location
	logger    *slog.Logger

	now func() time.Time
}

func NewService(
	repo Repository,
	registry *integration.Registry,
	transport Transport,
	notifier Notifier,
	loc *time.Location,
	logger *slog.Logger,
) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:      repo,
		registry:  registry,
		transport: transport,
		notifier:  notifier,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// StartIncident begins the creation sequence. When the team already has
// ongoing incidents that started today, nothing is created and those
// incidents are returned so the caller can ask for confirmation.
func (s *Service) StartIncident(ctx context.Context, teamID, name string) (*StartResult, error) {
	ongoing, err := s.ongoingToday(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if len(ongoing) > 0 {
		return &StartResult{OngoingToday: ongoing}, nil
	}

	inc, err := s.CreateIncident(ctx, teamID, name)
	if err != nil {
		return nil, err
	}
	return &StartResult{Created: inc}, nil
}

// CreateIncident runs the full creation sequence unconditionally: channel,
// external resources per configured capability, persistence, topic,
// notification. A failed capability leaves its resource nil; it never
// aborts the rest. Channel creation and persistence are not atomic: a
// persistence failure can leave an orphan channel behind.
func (s *Service) CreateIncident(ctx context.Context, teamID, name string) (*domain.Incident, error) {
	logger := ctxlog.FromContext(ctx)
	now := s.now().In(s.loc)

	channelName, err := s.channelName(ctx, teamID, name, now)
	if err != nil {
		return nil, err
	}

	channelID, err := s.transport.CreateChannel(ctx, teamID, channelName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrChannelCreationFailed, channelName, err)
	}

	inc := domain.NewIncident(teamID, channelID, name, now)

	set, err := s.registry.ForTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("resolve integrations: %w", err)
	}

	// Each capability is independent: a failed resource stays nil and the
	// incident proceeds without it.
	if set.Ticket != nil {
		inc.Ticket = set.Ticket.Provider.CreateTicket(ctx, set.Ticket.Integration)
	}
	if set.Call != nil {
		inc.Call = set.Call.Provider.CreateCall(ctx, set.Call.Integration)
	}

	if err := s.repo.CreateIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("persist incident: %w", err)
	}
	metrics.IncidentsCreated.Inc()

	if topic := incidentTopic(inc); topic != "" {
		if err := s.transport.SetTopic(ctx, teamID, channelID, topic); err != nil {
			logger.Warn("failed to set incident channel topic",
				"team_id", teamID, "channel_id", channelID, "error", err)
		}
	}

	if err := s.notifier.Announce(ctx, inc); err != nil {
		logger.Error("failed to notify responders",
			"team_id", teamID, "incident_id", inc.ID, "error", err)
	}

	return inc, nil
}

// CreateTicketFor creates a ticket resource on demand for an existing
// context (a bare "create ticket" mention). Returns nil when the team has
// no usable ticket integration or the provider call fails.
func (s *Service) CreateTicketFor(ctx context.Context, teamID string) (*domain.Resource, error) {
	binding, err := s.registry.Ticket(ctx, teamID)
	if err != nil {
		return nil, err
	}
	res := binding.Provider.CreateTicket(ctx, binding.Integration)
	if res == nil {
		return nil, fmt.Errorf("ticket creation failed")
	}
	return res, nil
}

// CreateCallFor creates a call resource on demand, with the same contract
// as CreateTicketFor.
func (s *Service) CreateCallFor(ctx context.Context, teamID string) (*domain.Resource, error) {
	binding, err := s.registry.Call(ctx, teamID)
	if err != nil {
		return nil, err
	}
	res := binding.Provider.CreateCall(ctx, binding.Integration)
	if res == nil {
		return nil, fmt.Errorf("call creation failed")
	}
	return res, nil
}

// OngoingIncidents returns all incidents with status ONGOING, regardless
// of date.
func (s *Service) OngoingIncidents(ctx context.Context, teamID string) ([]domain.Incident, error) {
	all, err := s.repo.ListIncidents(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing incidents: %w", err)
	}
	ongoing := make([]domain.Incident, 0)
	for _, inc := range all {
		if inc.Status == domain.IncidentOngoing {
			ongoing = append(ongoing, inc)
		}
	}
	return ongoing, nil
}

// TodayIncidents returns the team's incidents whose start date falls on
// today's calendar date in the configured timezone.
func (s *Service) TodayIncidents(ctx context.Context, teamID string) ([]domain.Incident, error) {
	all, err := s.repo.ListIncidents(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing incidents: %w", err)
	}
	now := s.now()
	today := make([]domain.Incident, 0)
	for _, inc := range all {
		if inc.FromToday(now, s.loc) {
			today = append(today, inc)
		}
	}
	return today, nil
}

// GetIncident looks up one incident by its channel id.
func (s *Service) GetIncident(ctx context.Context, teamID, incidentID string) (*domain.Incident, error) {
	return s.repo.GetIncident(ctx, teamID, incidentID)
}

// LogComment appends a comment to the incident's ticket. The outcome is a
// structured value the caller can post back to the user verbatim; nothing
// here raises on provider failure.
func (s *Service) LogComment(ctx context.Context, teamID, incidentID, text string) CommentOutcome {
	logger := ctxlog.FromContext(ctx)

	inc, err := s.repo.GetIncident(ctx, teamID, incidentID)
	if err != nil {
		if !errors.Is(err, ErrIncidentNotFound) {
			logger.Error("failed to load incident for comment",
				"team_id", teamID, "incident_id", incidentID, "error", err)
		}
		return CommentOutcome{Message: "This channel is not tracking an incident."}
	}
	if !inc.HasTicket() {
		return CommentOutcome{Message: "This incident has no ticket to comment on."}
	}

	binding, err := s.registry.Ticket(ctx, teamID)
	if err != nil {
		return CommentOutcome{Message: "No ticket integration is configured."}
	}

	result := binding.Provider.AddComment(ctx, binding.Integration, inc.Ticket.Key, text)
	if !result.OK {
		logger.Warn("comment append failed",
			"team_id", teamID, "incident_id", incidentID, "reason", result.Reason)
		return CommentOutcome{Message: "Could not add the comment to the ticket."}
	}
	return CommentOutcome{OK: true, Message: "Comment added to the ticket."}
}

// CloseIncident sets the incident CLOSED via a conditional update; a
// missing row yields ErrIncidentNotFound and creates nothing. A non-empty
// resolution is recorded and, when the incident has a ticket, appended to
// it as a comment.
func (s *Service) CloseIncident(ctx context.Context, teamID, incidentID, resolution string) error {
	logger := ctxlog.FromContext(ctx)

	if err := s.repo.UpdateStatus(ctx, teamID, incidentID, domain.IncidentClosed, resolution); err != nil {
		return err
	}
	metrics.IncidentsClosed.Inc()

	if resolution == "" {
		return nil
	}
	outcome := s.LogComment(ctx, teamID, incidentID, "Resolution: "+resolution)
	if !outcome.OK {
		logger.Debug("resolution not mirrored to ticket",
			"team_id", teamID, "incident_id", incidentID, "message", outcome.Message)
	}
	return nil
}

func (s *Service) channelName(ctx context.Context, teamID, name string, now time.Time) (string, error) {
	if sanitize(name) != "" {
		return ChannelName(name, now), nil
	}
	today, err := s.TodayIncidents(ctx, teamID)
	if err != nil {
		return "", err
	}
	return SequenceChannelName(now, len(today)), nil
}

func (s *Service) ongoingToday(ctx context.Context, teamID string) ([]domain.Incident, error) {
	ongoing, err := s.OngoingIncidents(ctx, teamID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	todays := make([]domain.Incident, 0)
	for _, inc := range ongoing {
		if inc.FromToday(now, s.loc) {
			todays = append(todays, inc)
		}
	}
	return todays, nil
}

// incidentTopic picks the channel topic: the incident name, or the call
// link when the incident is unnamed but has a call.
func incidentTopic(inc *domain.Incident) string {
	if inc.Name != "" {
		return inc.Name
	}
	if inc.HasCall() {
		return inc.Call.Link
	}
	return ""
}
