package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"marquee/internal/logger"
	"marquee/internal/models"
)

const SessionCookie = "session"

type ctxKey string

const actorKey ctxKey = "actor"

// SessionClaims is the token issued by the session provider: the subject is
// the user id.
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func ContextWithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}

// NewSessionToken signs an HS256 session token for the actor.
func NewSessionToken(secret string, actor models.Actor, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := SessionClaims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseSessionToken validates the token and returns the actor it names.
func ParseSessionToken(secret, raw string) (models.Actor, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Actor{}, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Actor{}, errors.New("token subject is not a user id")
	}
	role := claims.Role
	if role != models.RoleAdmin {
		role = models.RoleUser
	}
	return models.Actor{UserID: id, Role: role}, nil
}

func tokenFromRequest(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// Session resolves the caller from a bearer token or the session cookie.
// Requests without a token continue anonymously; a bad token is rejected.
func Session(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			c.Next()
			return
		}

		actor, err := ParseSessionToken(secret, raw)
		if err != nil {
			logger.WithContext(c.Request.Context()).Info("Rejected session token", "error", err)
			abort(c, http.StatusUnauthorized, "Invalid session")
			return
		}

		c.Set("user_id", actor.UserID.String())
		ctx := ContextWithActor(c.Request.Context(), actor)
		ctx = logger.ContextWithUserID(ctx, actor.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ActorFromContext(c.Request.Context()); !ok {
			abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c.Request.Context())
		if !ok {
			abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !actor.IsAdmin() {
			abort(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}
