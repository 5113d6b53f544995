package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTTL = 24 * time.Hour

type ctxKey int

const ownerKey ctxKey = iota

/*
Verify the bearer JWT, extract the owner id from "sub"
and put it into the request context
*/
func (h *Handler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			sendError(w, http.StatusUnauthorized, codeUnauthorized, "Missing Authorization header")
			return
		}
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			sendError(w, http.StatusUnauthorized, codeInvalidToken, "Authorization header must be Bearer <token>")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			return h.JWTSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if errors.Is(err, jwt.ErrTokenExpired) {
			sendError(w, http.StatusUnauthorized, codeTokenExpired, "Token expired")
			return
		}
		if err != nil || !token.Valid {
			sendError(w, http.StatusUnauthorized, codeInvalidToken, "Invalid token")
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			sendError(w, http.StatusUnauthorized, codeInvalidToken, "Invalid token claims")
			return
		}
		owner, err := uuid.Parse(sub)
		if err != nil {
			sendError(w, http.StatusUnauthorized, codeInvalidToken, "Invalid token subject")
			return
		}

		ctx := context.WithValue(r.Context(), ownerKey, owner)
		next(w, r.WithContext(ctx))
	}
}

// ownerFromContext returns the owner id set by AuthMiddleware.
func ownerFromContext(ctx context.Context) (uuid.UUID, bool) {
	owner, ok := ctx.Value(ownerKey).(uuid.UUID)
	return owner, ok && owner != uuid.Nil
}

func (h *Handler) generateToken(owner uuid.UUID) (string, time.Time, error) {
	if len(h.JWTSecret) == 0 {
		return "", time.Time{}, errors.New("jwt secret is not configured")
	}
	now := time.Now()
	expires := now.Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": owner.String(),
		"exp": expires.Unix(),
		"iat": now.Unix(),
	})
	signed, err := token.SignedString(h.JWTSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error signing token: %w", err)
	}
	return signed, expires, nil
}
