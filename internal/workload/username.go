package workload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// NamespacePrefix is prepended to every derived user namespace.
const NamespacePrefix = "kbatch-"

var unsafeRuns = regexp.MustCompile(`[^a-z0-9]+`)

// NamespaceForUsername derives the Kubernetes namespace for a JupyterHub user.
//
// Not every JupyterHub username is a valid namespace name, so the username is
// lowercased, runs of characters outside [a-z0-9] collapse to a single "-",
// the result is truncated to 40 characters and stripped of leading/trailing
// "-". If that transform changed anything, the first 7 hex characters of the
// username's SHA-256 are appended after "--" so distinct usernames that
// sanitize alike cannot collide. The "kbatch-" prefix keeps user namespaces
// apart from everything else on the cluster.
//
// The mapping is deterministic; the worst-case result is 56 characters, under
// the 63-character namespace limit.
func NamespaceForUsername(username string) string {
	safe := unsafeRuns.ReplaceAllString(strings.ToLower(username), "-")
	if len(safe) > 40 {
		safe = safe[:40]
	}
	safe = strings.Trim(safe, "-")
	if safe != username {
		sum := sha256.Sum256([]byte(username))
		safe = fmt.Sprintf("%s--%s", safe, hex.EncodeToString(sum[:])[:7])
	}
	return NamespacePrefix + safe
}

// EscapeLabelValue makes a username usable as a label value: characters in
// [a-z0-9] pass through, every UTF-8 byte of any other character is replaced
// with "-" followed by its uppercase hex code. "-" itself is escaped, so the
// transform stays reversible.
//
// Example: "alice@example.com" -> "alice-40example-2Ecom".
func EscapeLabelValue(username string) string {
	var b strings.Builder
	for _, r := range username {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		for _, byt := range []byte(string(r)) {
			fmt.Fprintf(&b, "-%X", byt)
		}
	}
	return b.String()
}
