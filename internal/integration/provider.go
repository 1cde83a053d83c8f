// Package integration resolves per-team provider integrations and keeps
// their OAuth credentials valid across calls.
package integration

import (
	"context"

	"github.com/piraidev/sereno/internal/domain"
)

// TokenSource refreshes an OAuth credential with the provider. The returned
// credential carries the new access token and expiry; providers that do not
// rotate refresh tokens return the old one unchanged.
type TokenSource interface {
	Name() string
	RefreshCredential(ctx context.Context, cred domain.OAuthCredential) (domain.OAuthCredential, error)
}

// TicketProvider creates ticket resources and appends comments to them.
// Network and provider failures are absorbed: CreateTicket returns nil and
// AddComment returns a failure result, never a transport error.
type TicketProvider interface {
	TokenSource
	CreateTicket(ctx context.Context, integ *domain.Integration) *domain.Resource
	AddComment(ctx context.Context, integ *domain.Integration, ticketKey, comment string) CommentResult
}

// CallProvider creates conference call resources. CreateCall returns nil
// when the provider call fails for any reason.
type CallProvider interface {
	TokenSource
	CreateCall(ctx context.Context, integ *domain.Integration) *domain.Resource
}

// CommentResult is the structured outcome of a comment append.
type CommentResult struct {
	OK     bool
	Reason string
}

// CommentOK is a successful comment result.
func CommentOK() CommentResult {
	return CommentResult{OK: true}
}

// CommentFailed builds a failure result with a user-facing reason.
func CommentFailed(reason string) CommentResult {
	return CommentResult{Reason: reason}
}
