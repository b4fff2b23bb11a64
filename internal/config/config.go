// Package config loads the proxy's runtime settings.
//
// Settings come from environment variables, optionally seeded from an env
// file named by KBATCH_SETTINGS_PATH. Real environment variables always win
// over file entries, so a container env can override a baked-in settings
// file. The variable names match the ones the kbatch helm chart renders.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// SettingsPathEnv names the env file to preload before reading settings.
const SettingsPathEnv = "KBATCH_SETTINGS_PATH"

// DefaultSettingsPath is used when KBATCH_SETTINGS_PATH is unset. A missing
// file at the default path is fine; a missing file at an explicit path is an
// error.
const DefaultSettingsPath = ".env"

// Settings holds every tunable of the proxy.
type Settings struct {
	// JupyterHubAPIToken is the proxy's own Hub service token, used to
	// resolve user tokens against the Hub API.
	JupyterHubAPIToken string `envconfig:"JUPYTERHUB_API_TOKEN" default:"super-secret"`

	// JupyterHubAPIURL points at the Hub REST API. Empty falls back to the
	// Hub's in-pod default.
	JupyterHubAPIURL string `envconfig:"JUPYTERHUB_API_URL"`

	// JupyterHubServicePrefix is the public path the Hub proxies to this
	// service. The Hub injects it into every managed service; it is declared
	// here as part of the settings surface. Route mounting uses Prefix.
	JupyterHubServicePrefix string `envconfig:"JUPYTERHUB_SERVICE_PREFIX" default:"/"`

	// Prefix mounts the API under a path prefix, for deployments that
	// share a hostname with other services. Empty serves from the root.
	Prefix string `envconfig:"KBATCH_PREFIX"`

	// InitLogging controls whether the serve command installs the default
	// slog handler. Embedders that configure logging themselves turn it
	// off.
	InitLogging bool `envconfig:"KBATCH_INIT_LOGGING" default:"true"`

	// JobTemplateFile names a YAML file holding a partial Job that is
	// merged over every submission, template values winning. Empty means
	// no template.
	JobTemplateFile string `envconfig:"KBATCH_JOB_TEMPLATE_FILE"`

	// ProfileFile names a YAML file of named submission presets served
	// verbatim at /profiles/. Empty serves an empty mapping.
	ProfileFile string `envconfig:"KBATCH_PROFILE_FILE"`

	// JobTTLSecondsAfterFinished is stamped on every submitted workload so
	// finished jobs are garbage collected. A negative value leaves the TTL
	// unset, deferring to the cluster default.
	JobTTLSecondsAfterFinished int32 `envconfig:"KBATCH_JOB_TTL_SECONDS_AFTER_FINISHED" default:"3600"`

	// JobExtraEnv is appended to the main container of every submission,
	// as a JSON object or comma-separated KEY=VALUE pairs.
	JobExtraEnv EnvMap `envconfig:"KBATCH_JOB_EXTRA_ENV"`

	// CreateUserNamespace controls whether submissions create the user's
	// namespace on demand. Turn it off when namespaces are provisioned out
	// of band with quotas or policies attached.
	CreateUserNamespace bool `envconfig:"KBATCH_CREATE_USER_NAMESPACE" default:"true"`

	// MaxCodeSize caps the decoded size of a submission's code ConfigMap
	// in bytes.
	MaxCodeSize int64 `envconfig:"KBATCH_MAX_CODE_SIZE" default:"1048576"`

	// ListenAddr is the API listen address. The serve command's
	// --listen-addr flag overrides it.
	ListenAddr string `envconfig:"KBATCH_LISTEN_ADDR" default:":8000"`
}

// Load reads the env file named by KBATCH_SETTINGS_PATH, then populates
// Settings from the environment.
func Load() (*Settings, error) {
	path := os.Getenv(SettingsPathEnv)
	explicit := path != ""
	if !explicit {
		path = DefaultSettingsPath
	}
	if err := godotenv.Load(path); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load settings file %s: %w", path, err)
		}
	}

	settings := &Settings{}
	if err := envconfig.Process("", settings); err != nil {
		return nil, fmt.Errorf("failed to read settings from environment: %w", err)
	}
	return settings, nil
}

// JobTTL returns the TTL to stamp on submitted workloads, or nil when the
// configured value is negative.
func (s *Settings) JobTTL() *int32 {
	if s.JobTTLSecondsAfterFinished < 0 {
		return nil
	}
	ttl := s.JobTTLSecondsAfterFinished
	return &ttl
}

// RoutePrefix returns the configured mount prefix in normalized form: empty
// for the root, otherwise with a leading slash and no trailing slash.
func (s *Settings) RoutePrefix() string {
	trimmed := strings.Trim(s.Prefix, "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}

// EnvMap is a string map that decodes from either a JSON object or
// comma-separated KEY=VALUE pairs.
type EnvMap map[string]string

// Decode implements envconfig.Decoder.
func (m *EnvMap) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*m = nil
		return nil
	}
	if strings.HasPrefix(value, "{") {
		parsed := map[string]string{}
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			return fmt.Errorf("invalid JSON object: %w", err)
		}
		*m = parsed
		return nil
	}
	parsed := map[string]string{}
	for _, pair := range strings.Split(value, ",") {
		key, val, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("invalid KEY=VALUE pair %q", pair)
		}
		parsed[key] = strings.TrimSpace(val)
	}
	*m = parsed
	return nil
}
