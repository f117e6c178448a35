package chi

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Authenticator verifies bearer JWTs signed with a shared HMAC secret.
// Requests without a token pass through as guests; handlers that need an
// identity reject guests themselves.
type Authenticator struct {
	secret []byte
	logger *zap.Logger
}

// NewAuthenticator creates an Authenticator. An empty secret disables
// verification entirely: every request is a guest.
func NewAuthenticator(secret string, logger *zap.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), logger: logger}
}

// Middleware extracts the caller identity from the Authorization header.
// A present but invalid token is rejected; an absent one is a guest.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authorization header must use the Bearer scheme")
			return
		}

		userID, err := a.verify(raw)
		if err != nil {
			a.logger.Debug("Rejected bearer token", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
	})
}

func (a *Authenticator) verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(_ *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", jwt.ErrTokenRequiredClaimMissing
	}
	return sub, nil
}

// ContextWithUserID attaches an authenticated user id to ctx.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, or "" for guests.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
