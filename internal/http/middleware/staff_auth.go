package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/caresync-health/booking-platform/internal/identity"
)

// StaffClaims is the token payload issued to reception and admin users.
// Role travels inside the token so the booking core can authorize staff
// operations without a directory lookup.
type StaffClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// StaffJWT enforces an HMAC-signed JWT for staff endpoints and puts the
// resulting actor on the request context.
func StaffJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "staff auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := StaffClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			role := identity.Role(claims.Role)
			if !role.Valid() || !role.Staff() {
				http.Error(w, "token does not carry a staff role", http.StatusForbidden)
				return
			}
			actor := identity.Actor{ID: claims.Subject, Role: role}
			next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
		})
	}
}

// OptionalStaffJWT validates a staff token when one is presented but lets
// anonymous requests through. A presented token that fails validation is
// still rejected.
func OptionalStaffJWT(secret string) func(http.Handler) http.Handler {
	strict := StaffJWT(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			strict(next).ServeHTTP(w, r)
		})
	}
}

// RequireStaff rejects requests whose actor is not a staff member. It runs
// after the identity middleware has populated the context.
func RequireStaff() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := identity.ActorFromContext(r.Context())
			if !ok || !actor.Role.Staff() {
				http.Error(w, "staff access required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PatientIdentity resolves the calling patient from identity headers when
// no staff actor is already on the context. Requests without any identity
// pass through; handlers that need an actor reject them.
func PatientIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := identity.ActorFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			id := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			actor := identity.Actor{ID: id, Role: identity.RolePatient}
			next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
		})
	}
}
