/*
identity.go - Caller identity resolution

PURPOSE:
  Resolves the authenticated caller from the X-User-ID request header and
  makes the loaded user record available to handlers through the request
  context. Authentication itself (tokens, sessions) lives at the gateway;
  this service trusts the header it is handed.

KEY CONCEPTS:
  - RequireIdentity: middleware that rejects requests without a resolvable
    caller. The user record is loaded once per request so role checks see
    current data, not a stale claim.
*/
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/cleanmap/waste-engine/core"
)

// identityHeader carries the authenticated caller's user ID.
const identityHeader = "X-User-ID"

type contextKey string

const callerKey contextKey = "caller"

// RequireIdentity loads the caller named by the X-User-ID header and stores
// the user record in the request context. Requests with a missing header get
// 401; an unknown user ID gets 404.
func (h *Handler) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(identityHeader)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required", errors.New("missing "+identityHeader+" header"))
			return
		}

		user, err := h.service.GetUser(r.Context(), core.UserID(id))
		if err != nil {
			h.writeServiceError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerFrom returns the user record placed in the context by RequireIdentity.
func callerFrom(ctx context.Context) (*core.User, bool) {
	u, ok := ctx.Value(callerKey).(*core.User)
	return u, ok
}
