package core

import (
	"crypto/subtle"
	"net/http"

	"floodloop/internal/types"
)

// authPublicPaths lists URL paths that are exempt from client authentication.
// Requests to these paths bypass the AuthMiddleware entirely.
var authPublicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// AuthMiddleware enforces client API key authentication when enabled.
//
//  1. Extracts the key from the X-API-Key header.
//  2. Calls KeyAuthenticator.Authenticate to verify the key against its
//     stored bcrypt hash.
//  3. Injects the key ID into the request context via types.WithAPIKeyID.
//  4. Returns 401 when the key is missing, 403 when it is invalid.
//
// When RequireClientKey is off (the default for local development) or no
// Authenticator is injected, the middleware passes through. A presented key
// is still resolved opportunistically so usage tracking works either way.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil || authPublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		required := s.Config != nil && s.Config.Security.RequireClientKey

		presented := r.Header.Get("X-API-Key")
		if presented == "" {
			if !required {
				next.ServeHTTP(w, r)
				return
			}
			Error(w, r, types.NewAppError(
				types.ErrCodeAuthKeyMissing,
				"X-API-Key header is required",
				nil,
			))
			return
		}

		keyID, err := s.Authenticator.Authenticate(r.Context(), presented)
		if err != nil {
			if !required {
				// Invalid key with enforcement off: treat as anonymous.
				next.ServeHTTP(w, r)
				return
			}
			Error(w, r, types.NewAppError(
				types.ErrCodeAuthKeyInvalid,
				"the provided API key is not valid",
				err,
			))
			return
		}

		ctx := types.WithAPIKeyID(r.Context(), keyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminAuthMiddleware guards /v1/admin routes with the static admin secret.
// The comparison is constant-time to avoid leaking the secret via timing.
func (s *Server) AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := ""
		if s.Config != nil {
			secret = s.Config.Security.AdminAPIKey.Unmask()
		}

		presented := r.Header.Get("X-Admin-Key")
		if secret == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			Error(w, r, types.NewAppError(
				types.ErrCodeAuthAdminForbidden,
				"admin access denied",
				nil,
			))
			return
		}

		next.ServeHTTP(w, r)
	})
}
