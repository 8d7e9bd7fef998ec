package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
	"github.com/dataontap/DeviceInsights-sub000/internal/service"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// Principal represents the authenticated identity making the request.
type Principal struct {
	Type         string // "credential" or "admin"
	CredentialID int64
	Tier         string
	Label        string
	AdminID      int64
	IsAdmin      bool
}

// BearerToken extracts the bearer value from an Authorization header, or ""
// when absent.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// RequireAdmin returns an HTTP middleware for the operator API: it accepts
// a JWT session token in the Authorization header and rejects everything
// else. Public lookup traffic is authenticated by the request gateway, not
// here.
func RequireAdmin(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required. Provide a Bearer session token.")
				return
			}

			adminID, email, err := authSvc.ValidateJWT(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid session token")
				return
			}

			principal := &Principal{
				Type:    "admin",
				AdminID: adminID,
				Label:   email,
				IsAdmin: true,
			}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithPrincipal returns a copy of ctx carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, AuthPrincipalKey, p)
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil for unauthenticated requests.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    model.CodeUnknownCredential,
			Message: message,
		},
	})
}
