package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
)

// Principal is the authenticated caller attached by Auth.
type Principal struct {
	UserID uuid.UUID
	Role   enums.Role
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserIDFromContext returns the caller's id, or "" when unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok && p.UserID != uuid.Nil {
		return p.UserID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return string(p.Role)
}

// ActorFromContext builds the event actor for the caller, or nil when the
// request carries no user.
func ActorFromContext(ctx context.Context) *outbox.ActorRef {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: p.UserID, Role: string(p.Role)}
}

// WithUserID sets the caller id, keeping any role already present. An
// unparsable id leaves the caller anonymous.
func WithUserID(ctx context.Context, userID string) context.Context {
	p, _ := PrincipalFromContext(ctx)
	p.UserID, _ = uuid.Parse(userID)
	return WithPrincipal(ctx, p)
}

// WithRole sets the caller role, keeping any id already present.
func WithRole(ctx context.Context, role enums.Role) context.Context {
	p, _ := PrincipalFromContext(ctx)
	p.Role = role
	return WithPrincipal(ctx, p)
}
