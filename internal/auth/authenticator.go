package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kbatch-dev/kbatch-proxy/internal/instrumentation"
	"github.com/kbatch-dev/kbatch-proxy/internal/logging"
)

// Authenticator resolves request tokens to Hub users and enforces the
// service's access scopes.
type Authenticator struct {
	hub          *HubClient
	accessScopes []string
	cache        *identityCache
	metrics      *instrumentation.Metrics
	logger       *slog.Logger
}

// AuthenticatorConfig holds the settings for an Authenticator.
type AuthenticatorConfig struct {
	// Hub performs the identity lookups. Required.
	Hub *HubClient

	// AccessScopes lists the scopes that grant access; holding any one of
	// them is enough. Required, see AccessScopesFromEnv.
	AccessScopes []string

	// CacheTTL overrides how long Hub verdicts are reused.
	// Defaults to DefaultIdentityCacheTTL.
	CacheTTL time.Duration

	// Metrics is an optional recorder for auth lookup results.
	Metrics *instrumentation.Metrics

	// Logger overrides the default logger.
	Logger *slog.Logger
}

// NewAuthenticator creates an Authenticator. Access scopes must be
// configured; without them every request would have to be refused.
func NewAuthenticator(config AuthenticatorConfig) (*Authenticator, error) {
	if config.Hub == nil {
		return nil, errors.New("hub client is required")
	}
	if len(config.AccessScopes) == 0 {
		return nil, errors.New("access scopes for kbatch are not defined, " +
			"set $JUPYTERHUB_OAUTH_ACCESS_SCOPES and/or $JUPYTERHUB_SERVICE_NAME")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Authenticator{
		hub:          config.Hub,
		accessScopes: config.AccessScopes,
		cache:        newIdentityCache(config.CacheTTL),
		metrics:      config.Metrics,
		logger:       logger,
	}, nil
}

// Authenticate resolves the request's Authorization header to a User and
// checks access scopes. It returns ErrInvalidToken for missing or rejected
// tokens, a *ScopeError for authenticated users without access, and an
// error wrapping ErrHubUnavailable when the Hub cannot answer.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*User, error) {
	token := TokenFromHeader(r.Header.Get("Authorization"))
	if token == "" {
		a.record(ctx, instrumentation.AuthResultInvalid)
		return nil, ErrInvalidToken
	}

	if user, ok := a.cache.Get(token); ok {
		return a.finish(ctx, user, instrumentation.AuthResultCached)
	}

	user, err := a.hub.UserForToken(ctx, token)
	if err != nil {
		a.record(ctx, instrumentation.AuthResultError)
		return nil, err
	}
	if user != nil {
		user.APIToken = token
	}
	a.cache.Set(token, user)

	return a.finish(ctx, user, instrumentation.AuthResultSuccess)
}

// finish applies the scope check and records the lookup result.
func (a *Authenticator) finish(ctx context.Context, user *User, okResult string) (*User, error) {
	if user == nil {
		a.record(ctx, instrumentation.AuthResultInvalid)
		return nil, ErrInvalidToken
	}
	if !HasAnyScope(a.accessScopes, user.Scopes) {
		a.record(ctx, instrumentation.AuthResultDenied)
		a.logger.Warn("denying request with insufficient scopes",
			logging.Username(user.Name),
			slog.Any("have", user.Scopes),
			slog.Any("need", a.accessScopes))
		return nil, &ScopeError{Have: user.Scopes, Need: a.accessScopes}
	}

	a.record(ctx, okResult)
	return user, nil
}

func (a *Authenticator) record(ctx context.Context, result string) {
	if a.metrics != nil {
		a.metrics.RecordAuthLookup(ctx, result)
	}
}

// Close releases the verdict cache.
func (a *Authenticator) Close() {
	a.cache.Close()
}

// TokenFromHeader extracts the token from an Authorization header value.
// Both "Bearer <token>" and "token <token>" schemes are accepted, with the
// scheme matched case-insensitively. Returns "" when the header carries
// neither.
func TokenFromHeader(header string) string {
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return ""
	}
	switch strings.ToLower(fields[0]) {
	case "bearer", "token":
		return fields[1]
	}
	return ""
}

// HasAnyScope reports whether the held scopes satisfy at least one of the
// required scopes. A required scope with a filter, like
// "access:services!service=kbatch", is also satisfied by holding its
// unfiltered form "access:services". This mirrors the check JupyterHub's
// own service helpers perform.
func HasAnyScope(required, have []string) bool {
	haveSet := make(map[string]struct{}, len(have))
	for _, scope := range have {
		haveSet[scope] = struct{}{}
	}
	for _, req := range required {
		if _, ok := haveSet[req]; ok {
			return true
		}
		if base, _, found := strings.Cut(req, "!"); found {
			if _, ok := haveSet[base]; ok {
				return true
			}
		}
	}
	return false
}

// AccessScopesFromEnv resolves the service's required scopes the way
// JupyterHub-managed services do: $JUPYTERHUB_OAUTH_ACCESS_SCOPES as a
// JSON list (with the legacy $JUPYTERHUB_OAUTH_SCOPES as fallback), else
// a single access scope derived from $JUPYTERHUB_SERVICE_NAME. Returns an
// empty slice when neither is set.
func AccessScopesFromEnv() ([]string, error) {
	for _, key := range []string{"JUPYTERHUB_OAUTH_ACCESS_SCOPES", "JUPYTERHUB_OAUTH_SCOPES"} {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		var scopes []string
		if err := json.Unmarshal([]byte(raw), &scopes); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", key, err)
		}
		return scopes, nil
	}
	if name := os.Getenv("JUPYTERHUB_SERVICE_NAME"); name != "" {
		return []string{"access:services!service=" + name}, nil
	}
	return nil, nil
}
