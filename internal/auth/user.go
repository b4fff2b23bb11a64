package auth

import (
	"errors"
	"fmt"

	"github.com/kbatch-dev/kbatch-proxy/internal/workload"
)

// User is the identity JupyterHub reports for a token.
type User struct {
	Name   string   `json:"name"`
	Groups []string `json:"groups"`
	Scopes []string `json:"scopes,omitempty"`

	// APIToken is the raw token the request carried. Never serialized;
	// the submission pipeline forwards it into jobs as
	// JUPYTERHUB_API_TOKEN.
	APIToken string `json:"-"`
}

// Namespace returns the Kubernetes namespace all of this user's resources
// live in.
func (u *User) Namespace() string {
	return workload.NamespaceForUsername(u.Name)
}

// ErrInvalidToken marks requests whose token the Hub rejected, or that
// carried no usable token at all. The HTTP layer maps it to 401.
var ErrInvalidToken = errors.New("incorrect token")

// ErrHubUnavailable marks identity lookups that failed because the Hub
// could not be reached or answered unexpectedly. The HTTP layer maps it
// to 502.
var ErrHubUnavailable = errors.New("jupyterhub api unavailable")

// ScopeError reports an authenticated user whose token lacks every scope
// required for access. The HTTP layer maps it to 403 with the error text
// as the detail.
type ScopeError struct {
	Have []string
	Need []string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("Not allowing request with scopes: %v. Needs scope(s): %v", e.Have, e.Need)
}
