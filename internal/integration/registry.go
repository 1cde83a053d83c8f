package integration

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/pkg/ctxlog"
)

// Store reads a team's stored authorizations. GetIntegration returns
// (nil, nil) when the team has no record for the provider.
type Store interface {
	AuthorizedProviders(ctx context.Context, teamID string) ([]string, error)
	GetIntegration(ctx context.Context, teamID, provider string) (*domain.Integration, error)
}

// TicketBinding pairs a ticket provider with a team's valid integration.
type TicketBinding struct {
	Provider    TicketProvider
	Integration *domain.Integration
}

// CallBinding pairs a call provider with a team's valid integration.
type CallBinding struct {
	Provider    CallProvider
	Integration *domain.Integration
}

// Set holds the per-capability bindings available to one team. A nil
// member means the capability is not configured.
type Set struct {
	Ticket *TicketBinding
	Call   *CallBinding
}

// Registry resolves which providers a team has authorized. The provider
// set is closed: exactly one ticket provider and one call provider.
type Registry struct {
	store  Store
	ticket TicketProvider
	call   CallProvider
}

// NewRegistry creates a registry over the closed provider set.
func NewRegistry(store Store, ticket TicketProvider, call CallProvider) *Registry {
	return &Registry{store: store, ticket: ticket, call: call}
}

// Ticket builds the team's ticket binding. Returns
// ErrIntegrationUnavailable when the team never authorized the provider or
// the stored integration is invalid; never a partially-usable binding.
func (r *Registry) Ticket(ctx context.Context, teamID string) (*TicketBinding, error) {
	integ, err := r.build(ctx, teamID, r.ticket.Name(), domain.CapabilityTicket)
	if err != nil {
		return nil, err
	}
	return &TicketBinding{Provider: r.ticket, Integration: integ}, nil
}

// Call builds the team's call binding, with the same contract as Ticket.
func (r *Registry) Call(ctx context.Context, teamID string) (*CallBinding, error) {
	integ, err := r.build(ctx, teamID, r.call.Name(), domain.CapabilityCall)
	if err != nil {
		return nil, err
	}
	return &CallBinding{Provider: r.call, Integration: integ}, nil
}

// ForTeam resolves both capabilities. Unavailable capabilities are
// reported as nil members; only storage-level failures propagate.
func (r *Registry) ForTeam(ctx context.Context, teamID string) (*Set, error) {
	logger := ctxlog.FromContext(ctx)
	set := &Set{}

	ticket, err := r.Ticket(ctx, teamID)
	switch {
	case err == nil:
		set.Ticket = ticket
	case isUnavailable(err):
		logger.Debug("no ticket integration", "team_id", teamID, "reason", err)
	default:
		return nil, fmt.Errorf("resolve ticket integration: %w", err)
	}

	call, err := r.Call(ctx, teamID)
	switch {
	case err == nil:
		set.Call = call
	case isUnavailable(err):
		logger.Debug("no call integration", "team_id", teamID, "reason", err)
	default:
		return nil, fmt.Errorf("resolve call integration: %w", err)
	}

	return set, nil
}

func (r *Registry) build(ctx context.Context, teamID, provider string, cap domain.Capability) (*domain.Integration, error) {
	authorized, err := r.store.AuthorizedProviders(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list authorized providers: %w", err)
	}

	if !slices.Contains(authorized, provider) {
		return nil, fmt.Errorf("%w: %s not authorized", ErrIntegrationUnavailable, provider)
	}

	integ, err := r.store.GetIntegration(ctx, teamID, provider)
	if err != nil {
		return nil, fmt.Errorf("load %s integration: %w", provider, err)
	}
	if integ == nil {
		return nil, fmt.Errorf("%w: %s has no stored credential", ErrIntegrationUnavailable, provider)
	}

	integ.Capability = cap
	if !integ.Valid() {
		return nil, fmt.Errorf("%w: %s credential is incomplete", ErrIntegrationUnavailable, provider)
	}

	return integ, nil
}

func isUnavailable(err error) bool {
	return errors.Is(err, ErrIntegrationUnavailable)
}
