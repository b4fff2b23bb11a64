package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kbatch-dev/kbatch-proxy/internal/logging"
)

// DefaultHubAPIURL is where a Hub-managed service finds the Hub REST API
// when JUPYTERHUB_API_URL is not set.
const DefaultHubAPIURL = "http://127.0.0.1:8081/hub/api"

// DefaultHubTimeout bounds each identity lookup against the Hub.
const DefaultHubTimeout = 10 * time.Second

// HubClient queries the JupyterHub REST API.
type HubClient struct {
	apiURL   string
	apiToken string
	client   *http.Client
	logger   *slog.Logger
}

// HubClientConfig holds the settings for a HubClient.
type HubClientConfig struct {
	// APIURL is the base URL of the Hub REST API. Defaults to
	// $JUPYTERHUB_API_URL, then DefaultHubAPIURL.
	APIURL string

	// APIToken is the proxy's own service token. Identity lookups use the
	// requesting user's token, but the service token is kept for requests
	// made on the proxy's behalf.
	APIToken string

	// Timeout bounds each request to the Hub. Defaults to DefaultHubTimeout.
	Timeout time.Duration

	// Logger overrides the default logger.
	Logger *slog.Logger
}

// NewHubClient creates a HubClient, filling unset fields from the
// environment and defaults.
func NewHubClient(config HubClientConfig) *HubClient {
	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = os.Getenv("JUPYTERHUB_API_URL")
	}
	if apiURL == "" {
		apiURL = DefaultHubAPIURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultHubTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HubClient{
		apiURL:   strings.TrimRight(apiURL, "/"),
		apiToken: config.APIToken,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// APIURL returns the Hub API base URL the client talks to.
func (h *HubClient) APIURL() string {
	return h.apiURL
}

// UserForToken asks the Hub who owns the given token. It returns the user
// on success and (nil, nil) when the Hub rejects the token. Transport
// failures and unexpected Hub responses wrap ErrHubUnavailable.
func (h *HubClient) UserForToken(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.apiURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHubUnavailable, err)
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("failed to reach jupyterhub", logging.SanitizedErr(err))
		return nil, fmt.Errorf("%w: %v", ErrHubUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		var user User
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, fmt.Errorf("%w: failed to decode identity response: %v", ErrHubUnavailable, err)
		}
		return &user, nil
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		// The Hub does not recognize the token.
		return nil, nil
	default:
		h.logger.Error("unexpected status from jupyterhub identity lookup",
			slog.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: identity lookup returned status %d", ErrHubUnavailable, resp.StatusCode)
	}
}
