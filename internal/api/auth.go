package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// tokenAudience is the aud claim editorial tokens must carry, so a token
// minted for another internal service cannot write here.
const tokenAudience = "diet-tracker-api"

// authenticator validates bearer tokens for the editorial write endpoints.
// Tokens are HS256 JWTs issued out of band; this server only verifies them.
type authenticator struct {
	secret []byte
	logger *slog.Logger
}

// require wraps a handler with bearer token validation. The token subject
// is placed in the request context for audit logging.
func (a *authenticator) require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "auth_required", "missing bearer token")
			return
		}

		claims := jwt.RegisteredClaims{}
		parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
			return a.secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithAudience(tokenAudience),
		)
		if err != nil || !parsed.Valid {
			a.logger.Warn("token validation failed",
				"error", err,
				"path", r.URL.Path,
				"method", r.Method,
			)
			writeError(w, http.StatusUnauthorized, "auth_invalid", "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeySubject, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
