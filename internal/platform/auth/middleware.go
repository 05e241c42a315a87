package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Claim keys the marketplace writes onto Firebase accounts. Roles live in a
// custom claim; email and locale come from the standard ones.
const (
	roleClaim   = "role"
	localeClaim = "locale"
	emailClaim  = "email"

	defaultVerifyTimeout = 5 * time.Second
)

var (
	// ErrTokenExpired signals that the provided Firebase ID token has expired.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid signals that the provided Firebase ID token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// UserGetter retrieves Firebase user information.
type UserGetter interface {
	GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)
}

// Authenticator turns Firebase token verification into chi-compatible
// middleware. Accounts without a role claim are treated as customers, the
// default for self-service signups.
type Authenticator struct {
	verifier TokenVerifier
	users    UserGetter
	timeout  time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithUserGetter enables lazy user record loading via Firebase Admin APIs.
func WithUserGetter(getter UserGetter) Option {
	return func(a *Authenticator) { a.users = getter }
}

// WithVerificationTimeout bounds token verification and user loading.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs a Firebase Authenticator.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		timeout:  defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireFirebaseAuth verifies the Authorization bearer token and, when
// allowedRoles is non-empty, rejects identities holding none of them.
func (a *Authenticator) RequireFirebaseAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		if role = normaliseRole(role); role != "" {
			allowed[role] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeAuthError(w, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil {
				writeAuthError(w, "unauthenticated", "authorization service unavailable")
				return
			}

			verifyCtx, cancel := context.WithTimeout(r.Context(), a.timeout)
			token, err := a.verifier.VerifyIDToken(verifyCtx, tokenStr)
			cancel()
			if err != nil {
				writeVerificationError(w, err)
				return
			}

			identity := a.identityFromToken(token)
			if len(allowed) > 0 && !identity.HasAnyRole(allowedRoles...) {
				writeAuthError(w, "insufficient_role", "identity does not have required role")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func (a *Authenticator) identityFromToken(token *firebaseauth.Token) *Identity {
	identity := &Identity{
		UID:    token.UID,
		Email:  stringClaim(token.Claims, emailClaim),
		Locale: stringClaim(token.Claims, localeClaim),
		Roles:  rolesFromClaim(token.Claims[roleClaim]),
		token:  token,
	}
	if len(identity.Roles) == 0 {
		identity.Roles = []string{RoleCustomer}
	}

	if a.users != nil {
		identity.userLoader = func(ctx context.Context, uid string) (*firebaseauth.UserRecord, error) {
			if uid == "" {
				uid = identity.UID
			}
			loadCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			return a.users.GetUser(loadCtx, uid)
		}
	}
	return identity
}

// rolesFromClaim accepts the claim shapes Firebase consoles and admin scripts
// produce: a single string, a string list, or a role->bool map.
func rolesFromClaim(raw any) []string {
	switch v := raw.(type) {
	case string:
		if role := normaliseRole(v); role != "" {
			return []string{role}
		}
	case []any:
		var out []string
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = appendRole(out, str)
			}
		}
		return out
	case []string:
		var out []string
		for _, item := range v {
			out = appendRole(out, item)
		}
		return out
	case map[string]any:
		var out []string
		for role, granted := range v {
			if ok, _ := granted.(bool); ok {
				out = appendRole(out, role)
			}
		}
		return out
	}
	return nil
}

func appendRole(roles []string, raw string) []string {
	role := normaliseRole(raw)
	if role == "" {
		return roles
	}
	for _, existing := range roles {
		if existing == role {
			return roles
		}
	}
	return append(roles, role)
}

func stringClaim(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return strings.TrimSpace(value)
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  http.StatusUnauthorized,
	})
}

func writeVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		writeAuthError(w, "token_expired", "firebase id token expired")
	case errors.Is(err, ErrTokenInvalid), firebaseauth.IsIDTokenInvalid(err):
		writeAuthError(w, "invalid_token", "firebase id token invalid")
	default:
		writeAuthError(w, "invalid_token", "firebase id token verification failed")
	}
}
