package oauth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/pkg/ctxlog"
	"github.com/piraidev/sereno/internal/pkg/httputil"
)

// TicketAuthorizer finishes the ticket provider's OAuth flow.
type TicketAuthorizer interface {
	Name() string
	ExchangeCode(ctx context.Context, code string) (domain.OAuthCredential, error)
	AccessibleAccount(ctx context.Context, accessToken string) (string, error)
}

// CallAuthorizer finishes the call provider's OAuth flow.
type CallAuthorizer interface {
	Name() string
	ExchangeCode(ctx context.Context, code string) (domain.OAuthCredential, error)
}

// Installer exchanges a workspace install code for its bot token.
type Installer interface {
	OAuthAccess(ctx context.Context, code string) (teamID, accessToken string, err error)
}

// Store persists completed authorizations.
type Store interface {
	SaveIntegration(ctx context.Context, integ *domain.Integration) error
	SaveBotToken(ctx context.Context, teamID, token string) error
}

// Handler handles OAuth callback requests from the providers.
type Handler struct {
	signer    *StateSigner
	ticket    TicketAuthorizer
	call      CallAuthorizer
	installer Installer
	store     Store
	logger    *slog.Logger
}

// NewHandler creates a new oauth callback handler.
func NewHandler(signer *StateSigner, ticket TicketAuthorizer, call CallAuthorizer, installer Installer, store Store, logger *slog.Logger) *Handler {
	return &Handler{
		signer:    signer,
		ticket:    ticket,
		call:      call,
		installer: installer,
		store:     store,
		logger:    logger,
	}
}

// RegisterRoutes registers the provider callback routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/jira/callback", h.JiraCallback)
	r.Get("/zoom/callback", h.ZoomCallback)
	r.Get("/slack/callback", h.SlackCallback)
}

// JiraCallback completes the ticket provider flow: exchanges the code,
// looks up the accessible site and stores the integration for the team
// carried in the state.
func (h *Handler) JiraCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.FromContext(ctx)

	teamID, ok := h.verifyState(w, r)
	if !ok {
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.Text(w, http.StatusBadRequest, "Missing authorization code.")
		return
	}

	cred, err := h.ticket.ExchangeCode(ctx, code)
	if err != nil {
		logger.Error("jira code exchange failed", "team_id", teamID, "error", err)
		httputil.Text(w, http.StatusBadGateway, "Authorization with Jira failed. Please try again.")
		return
	}

	accountID, err := h.ticket.AccessibleAccount(ctx, cred.AccessToken)
	if err != nil {
		logger.Error("jira accessible site lookup failed", "team_id", teamID, "error", err)
		httputil.Text(w, http.StatusBadGateway, "Could not determine your Jira site. Please try again.")
		return
	}

	integ := &domain.Integration{
		TeamID:     teamID,
		Provider:   h.ticket.Name(),
		Capability: domain.CapabilityTicket,
		AccountID:  accountID,
		Credential: cred,
	}
	if err := h.store.SaveIntegration(ctx, integ); err != nil {
		logger.Error("saving jira integration failed", "team_id", teamID, "error", err)
		httputil.Text(w, http.StatusInternalServerError, "Could not store the authorization. Please try again.")
		return
	}

	logger.Info("jira integration authorized", "team_id", teamID, "account_id", accountID)
	httputil.Text(w, http.StatusOK, "Jira connected. You can close this window.")
}

// ZoomCallback completes the call provider flow.
func (h *Handler) ZoomCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.FromContext(ctx)

	teamID, ok := h.verifyState(w, r)
	if !ok {
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.Text(w, http.StatusBadRequest, "Missing authorization code.")
		return
	}

	cred, err := h.call.ExchangeCode(ctx, code)
	if err != nil {
		logger.Error("zoom code exchange failed", "team_id", teamID, "error", err)
		httputil.Text(w, http.StatusBadGateway, "Authorization with Zoom failed. Please try again.")
		return
	}

	integ := &domain.Integration{
		TeamID:     teamID,
		Provider:   h.call.Name(),
		Capability: domain.CapabilityCall,
		Credential: cred,
	}
	if err := h.store.SaveIntegration(ctx, integ); err != nil {
		logger.Error("saving zoom integration failed", "team_id", teamID, "error", err)
		httputil.Text(w, http.StatusInternalServerError, "Could not store the authorization. Please try again.")
		return
	}

	logger.Info("zoom integration authorized", "team_id", teamID)
	httputil.Text(w, http.StatusOK, "Zoom connected. You can close this window.")
}

// SlackCallback completes the app install: the workspace identity and bot
// token both come from the exchange, so no state round-trip is involved.
func (h *Handler) SlackCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.FromContext(ctx)

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.Text(w, http.StatusBadRequest, "Missing authorization code.")
		return
	}

	teamID, token, err := h.installer.OAuthAccess(ctx, code)
	if err != nil {
		logger.Error("slack install exchange failed", "error", err)
		httputil.Text(w, http.StatusBadGateway, "Installing the app failed. Please try again.")
		return
	}

	if err := h.store.SaveBotToken(ctx, teamID, token); err != nil {
		logger.Error("saving bot token failed", "team_id", teamID, "error", err)
		httputil.Text(w, http.StatusInternalServerError, "Could not store the installation. Please try again.")
		return
	}

	logger.Info("workspace installed", "team_id", teamID)
	httputil.Text(w, http.StatusOK, "Sereno installed. Head back to your workspace.")
}

func (h *Handler) verifyState(w http.ResponseWriter, r *http.Request) (string, bool) {
	teamID, _, err := h.signer.Verify(r.URL.Query().Get("state"))
	if err != nil {
		ctxlog.FromContext(r.Context()).Warn("oauth state rejected", "error", err)
		httputil.Text(w, http.StatusUnauthorized, "This authorization link is invalid or expired.")
		return "", false
	}
	return teamID, true
}
