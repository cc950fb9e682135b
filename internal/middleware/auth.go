// Package middleware contains HTTP middleware for the league registration API.
// Middleware sits between the HTTP server and route handlers: it runs on every
// request that passes through it, which makes it the place for cross-cutting
// concerns like authentication and role checks.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	// fiber is the HTTP framework; fiber.Handler is the function signature for middleware
	"github.com/gofiber/fiber/v2"
	// jwt parses and verifies JSON Web Tokens from the Authorization header
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/config"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/store"
)

// Keys under which Auth stores the caller in c.Locals.
const (
	LocalUserID   = "userID"
	LocalUserRole = "userRole"
)

// Claims is the access-token payload we read. Subject identifies the person at the
// identity provider; role, email and name are custom claims.
type Claims struct {
	jwt.RegisteredClaims        // Standard JWT fields: Subject, ExpiresAt, Issuer, etc.
	Role                 string `json:"role"`  // "admin", "manager" or "user"
	Email                string `json:"email"` // Used to populate our users table
	Name                 string `json:"name"`  // Display name for our users table
}

// UserSyncer maps a verified identity to our user row (implemented by *store.Store).
type UserSyncer interface {
	SyncUser(ctx context.Context, id store.Identity) (models.User, error)
}

var errNoSubject = errors.New("token missing subject")

// Auth returns a Fiber middleware handler that:
//  1. Reads the JWT from the "Authorization: Bearer <token>" header
//  2. Verifies it (HS256 with cfg.JWTSecret; unverified only when no secret is set)
//  3. Finds the matching user in our database, creating one on first visit
//  4. Stores the user's internal UUID and role in c.Locals for downstream handlers
//
// Config.Validate refuses to start in production without JWT_SECRET, so unverified
// parsing is only ever reachable in development.
func Auth(cfg *config.Config, users UserSyncer) fiber.Handler {
	parse := tokenParser(cfg)

	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or invalid authorization header",
			})
		}

		claims, err := parse(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			} else if errors.Is(err, errNoSubject) {
				msg = errNoSubject.Error()
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
		}

		// Lazy user sync: the first authenticated request creates the user row.
		user, err := users.SyncUser(c.UserContext(), identityFrom(claims))
		if err != nil {
			log.Error().Err(err).Str("subject", claims.Subject).Msg("User sync failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load user record",
			})
		}

		c.Locals(LocalUserID, user.ID.String())
		c.Locals(LocalUserRole, string(user.Role))
		return c.Next()
	}
}

// tokenParser picks verified or unverified parsing once, at startup.
func tokenParser(cfg *config.Config) func(string) (*Claims, error) {
	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET not set: accepting unverified tokens (development only)")
		return func(raw string) (*Claims, error) {
			claims := &Claims{}
			if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
				return nil, err
			}
			return checkSubject(claims)
		}
	}

	secret := []byte(cfg.JWTSecret)
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	parser := jwt.NewParser(opts...)

	return func(raw string) (*Claims, error) {
		claims := &Claims{}
		token, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil {
			return nil, err
		}
		if !token.Valid {
			return nil, fmt.Errorf("token not valid")
		}
		return checkSubject(claims)
	}
}

func checkSubject(claims *Claims) (*Claims, error) {
	if claims.Subject == "" {
		return nil, errNoSubject
	}
	return claims, nil
}

// identityFrom fills placeholders for claims the token template may not carry yet.
func identityFrom(claims *Claims) store.Identity {
	email := claims.Email
	if email == "" {
		// Deterministic and unique per subject, and clearly not a real address.
		email = fmt.Sprintf("%s@users.invalid", claims.Subject)
	}
	name := claims.Name
	if name == "" {
		name = "Player"
	}
	return store.Identity{
		Subject:     claims.Subject,
		Email:       email,
		Name:        name,
		Role:        roleFromClaim(claims.Role),
		RoleClaimed: claims.Role != "",
	}
}

// roleFromClaim converts the raw role string from the JWT into our typed UserRole.
// A missing or unrecognised claim becomes "user" (least privileged).
func roleFromClaim(s string) models.UserRole {
	switch models.UserRole(s) {
	case models.UserRoleAdmin:
		return models.UserRoleAdmin
	case models.UserRoleManager:
		return models.UserRoleManager
	default:
		return models.UserRoleUser
	}
}
