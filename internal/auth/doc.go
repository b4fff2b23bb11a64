// Package auth authenticates proxy requests against JupyterHub.
//
// A request carries the user's Hub token in the Authorization header
// (either "Bearer <token>" or "token <token>"). The Authenticator resolves
// the token to a Hub user via the Hub REST API, verifies the user holds at
// least one of the scopes required to access the service, and caches the
// verdict briefly so bursts of requests from one user do not hammer the
// Hub. Rejected tokens are cached too.
//
// The resolved User keeps the raw token; the submission pipeline injects
// it into jobs as JUPYTERHUB_API_TOKEN so user code can talk back to
// the Hub.
package auth
