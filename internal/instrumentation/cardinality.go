package instrumentation

import "strings"

// Cardinality management helpers for metrics and span attributes.
//
// JupyterHub usernames are unbounded (many hubs use email addresses), so
// they must never become metric label values. Spans carry the domain part
// instead unless full usernames are explicitly enabled.

// ExtractUserDomain extracts the domain part from an email-shaped username.
// This reduces cardinality by using the domain instead of the full address.
//
// Example:
//
//	ExtractUserDomain("jane@example.org")  // "example.org"
//	ExtractUserDomain("alice")             // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(username string) string {
	if username == "" {
		return "unknown"
	}

	parts := strings.Split(username, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}
