package hooks

import (
	"context"
	"errors"

	apperrors "hookbin/internal/pkg/errors"
	"hookbin/internal/platform/models"
)

// Guard is one authorization predicate. Guards are pure reads against the
// stores; nothing is cached between calls because entitlement can change
// between any two checks.
type Guard func(ctx context.Context) error

// Chain evaluates guards left to right and short-circuits on the first
// failure, returning that guard's error kind.
func Chain(ctx context.Context, guards ...Guard) error {
	for _, guard := range guards {
		if err := guard(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Authorizer answers whether a principal may act on a webhook or endpoint.
type Authorizer struct {
	webhooks  *WebhookRepository
	endpoints *EndpointRepository
}

func NewAuthorizer(webhooks *WebhookRepository, endpoints *EndpointRepository) *Authorizer {
	return &Authorizer{webhooks: webhooks, endpoints: endpoints}
}

// Authenticated fails with Unauthenticated when there is no principal.
func Authenticated(principal *models.User) Guard {
	return func(ctx context.Context) error {
		if principal == nil {
			return apperrors.Wrap(apperrors.ErrUnauthenticated, "no principal")
		}
		return nil
	}
}

// WebhookAllowed requires the principal to be in the authorized set of the
// endpoint owning the webhook.
func (a *Authorizer) WebhookAllowed(principal *models.User, webhookID int64) Guard {
	return func(ctx context.Context) error {
		webhook, err := a.webhooks.FindByID(webhookID)
		if err != nil {
			return err
		}
		return a.requireEndpointUser(webhook.EndpointID, principal)
	}
}

// EndpointAllowed requires the principal to be in the endpoint's authorized
// set.
func (a *Authorizer) EndpointAllowed(principal *models.User, endpointID int64) Guard {
	return func(ctx context.Context) error {
		if _, err := a.endpoints.GetByID(endpointID); err != nil {
			return err
		}
		return a.requireEndpointUser(endpointID, principal)
	}
}

func (a *Authorizer) requireEndpointUser(endpointID int64, principal *models.User) error {
	if principal == nil {
		return apperrors.Wrap(apperrors.ErrUnauthenticated, "no principal")
	}
	ok, err := a.endpoints.IsEndpointUser(endpointID, principal.ID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Wrap(apperrors.ErrForbidden, "user %d has no access to endpoint %d", principal.ID, endpointID)
	}
	return nil
}

// IsAuthError reports whether err is an authorization outcome rather than an
// infrastructure failure. The subscription filter uses this to tell "skip the
// event" from "close the stream".
func IsAuthError(err error) bool {
	return errors.Is(err, apperrors.ErrUnauthenticated) ||
		errors.Is(err, apperrors.ErrForbidden) ||
		errors.Is(err, apperrors.ErrNotFound)
}
