package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk/ticketd/internal/domain"
	apperrors "github.com/helpdesk/ticketd/pkg/util"
)

const actorKey = "auth_actor"

// AuthMiddleware validates bearer tokens and attaches the verified actor.
// Workflows trust the identity carried in the token; no store lookup happens
// here.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	actor := claims.Actor()
	c.Locals(actorKey, &actor)
	return c.Next()
}

// ActorFromContext retrieves the authenticated identity.
func ActorFromContext(c *fiber.Ctx) (*domain.Actor, bool) {
	val := c.Locals(actorKey)
	if val == nil {
		return nil, false
	}
	actor, ok := val.(*domain.Actor)
	return actor, ok
}

// RequireAdmin rejects non-admin callers before the handler runs.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !actor.IsAdmin {
			return apperrors.NewForbidden("administrator access required")
		}
		return c.Next()
	}
}
