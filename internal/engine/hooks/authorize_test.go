package hooks

import (
	"context"
	"errors"
	"testing"

	apperrors "hookbin/internal/pkg/errors"
)

func TestChainShortCircuit(t *testing.T) {
	calls := []string{}
	pass := func(name string) Guard {
		return func(ctx context.Context) error {
			calls = append(calls, name)
			return nil
		}
	}
	fail := func(name string, err error) Guard {
		return func(ctx context.Context) error {
			calls = append(calls, name)
			return err
		}
	}

	boom := apperrors.Wrap(apperrors.ErrForbidden, "nope")
	err := Chain(context.Background(), pass("a"), fail("b", boom), pass("c"))
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Errorf("expected evaluation to stop at b, got %v", calls)
	}

	calls = nil
	if err := Chain(context.Background(), pass("a"), pass("b")); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if len(calls) != 2 {
		t.Errorf("expected both guards to run, got %v", calls)
	}
}

func TestAuthenticatedGuard(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)

	if err := Authenticated(nil)(context.Background()); !errors.Is(err, apperrors.ErrUnauthenticated) {
		t.Errorf("expected unauthenticated for nil principal, got %v", err)
	}
	if err := Authenticated(user)(context.Background()); err != nil {
		t.Errorf("expected nil for a principal, got %v", err)
	}
}

func TestWebhookAllowed(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db)
	outsider := seedUser(t, db)
	endpoint := seedEndpoint(t, db, "inbox", owner)
	webhook := seedWebhook(t, db, endpoint.ID)

	authz := NewAuthorizer(NewWebhookRepository(db), NewEndpointRepository(db))
	ctx := context.Background()

	if err := authz.WebhookAllowed(owner, webhook.ID)(ctx); err != nil {
		t.Errorf("owner should be allowed, got %v", err)
	}
	if err := authz.WebhookAllowed(outsider, webhook.ID)(ctx); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("expected forbidden for outsider, got %v", err)
	}
	if err := authz.WebhookAllowed(owner, 999)(ctx); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found for missing webhook, got %v", err)
	}
}

func TestEndpointAllowedRevocation(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db)
	guest := seedUser(t, db)
	endpoint := seedEndpoint(t, db, "inbox", owner)

	endpoints := NewEndpointRepository(db)
	authz := NewAuthorizer(NewWebhookRepository(db), endpoints)
	ctx := context.Background()

	if err := authz.EndpointAllowed(guest, endpoint.ID)(ctx); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("expected forbidden before grant, got %v", err)
	}

	if err := endpoints.AddUser(endpoint.ID, guest.ID); err != nil {
		t.Fatalf("add user: %v", err)
	}
	if err := authz.EndpointAllowed(guest, endpoint.ID)(ctx); err != nil {
		t.Fatalf("expected allowed after grant, got %v", err)
	}

	// Guards never cache: the very next check observes the revocation.
	if err := endpoints.RemoveUser(endpoint.ID, guest.ID); err != nil {
		t.Fatalf("remove user: %v", err)
	}
	if err := authz.EndpointAllowed(guest, endpoint.ID)(ctx); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("expected forbidden after revocation, got %v", err)
	}
}

func TestIsAuthError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{apperrors.Wrap(apperrors.ErrUnauthenticated, "x"), true},
		{apperrors.Wrap(apperrors.ErrForbidden, "x"), true},
		{apperrors.Wrap(apperrors.ErrNotFound, "x"), true},
		{apperrors.Wrap(apperrors.ErrStorage, "x"), false},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := IsAuthError(tc.err); got != tc.want {
			t.Errorf("IsAuthError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
