package team

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/piraidev/sereno/internal/domain"
)

// Service provides business logic for team settings.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) Settings(ctx context.Context, teamID string) (*domain.TeamSettings, error) {
	settings, err := s.repo.GetSettings(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("getting team settings: %w", err)
	}
	return settings, nil
}

// AddResponders registers the given Slack user or channel IDs as default
// responders and returns the resulting list. Duplicates are ignored.
func (s *Service) AddResponders(ctx context.Context, teamID string, ids []string) ([]string, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		r := domain.Responder{ID: id}
		if !r.IsUser() && !r.IsChannel() {
			s.logger.Warn("skipping responder with unknown id format", "team_id", teamID, "id", id)
			continue
		}
		valid = append(valid, id)
	}
	if len(valid) == 0 {
		return s.repo.GetResponders(ctx, teamID)
	}

	updated, err := s.repo.AddResponders(ctx, teamID, valid)
	if err != nil {
		return nil, fmt.Errorf("adding responders: %w", err)
	}
	return updated, nil
}

// RemoveResponders drops the given IDs from the responder list and returns
// the resulting list. Unknown IDs are ignored.
func (s *Service) RemoveResponders(ctx context.Context, teamID string, ids []string) ([]string, error) {
	updated, err := s.repo.RemoveResponders(ctx, teamID, ids)
	if err != nil {
		return nil, fmt.Errorf("removing responders: %w", err)
	}
	return updated, nil
}

func (s *Service) Responders(ctx context.Context, teamID string) ([]string, error) {
	responders, err := s.repo.GetResponders(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("getting responders: %w", err)
	}
	return responders, nil
}

// SetOncall records the single user currently on call for the team.
func (s *Service) SetOncall(ctx context.Context, teamID, userID string) error {
	r := domain.Responder{ID: userID}
	if !r.IsUser() {
		return fmt.Errorf("on-call must be a user id, got %q", userID)
	}
	if err := s.repo.SetOncall(ctx, teamID, userID); err != nil {
		return fmt.Errorf("setting on-call: %w", err)
	}
	return nil
}

func (s *Service) Oncall(ctx context.Context, teamID string) (string, error) {
	oncall, err := s.repo.GetOncall(ctx, teamID)
	if err != nil {
		return "", fmt.Errorf("getting on-call: %w", err)
	}
	return oncall, nil
}

// RespondersWithOncall returns the responder list with the on-call user
// merged in. The on-call user appears exactly once even when already
// registered as a responder.
func (s *Service) RespondersWithOncall(ctx context.Context, teamID string) ([]string, error) {
	responders, err := s.repo.GetResponders(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("getting responders: %w", err)
	}
	oncall, err := s.repo.GetOncall(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("getting on-call: %w", err)
	}
	if oncall != "" && !slices.Contains(responders, oncall) {
		responders = append(responders, oncall)
	}
	return responders, nil
}
