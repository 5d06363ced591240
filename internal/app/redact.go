package app

import (
	"os"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// RedactSecrets replaces known secret values with a placeholder. Error
// bodies from the backend can echo request headers, so anything that might
// reach a log or the screen goes through here first. Conservative on
// purpose: only provided values and the well-known env var are replaced.
func RedactSecrets(input string, secrets ...string) string {
	if strings.TrimSpace(input) == "" {
		return input
	}

	known := append([]string{}, secrets...)
	known = append(known, os.Getenv("ADESK_API_KEY"))

	out := input
	seen := make(map[string]bool)
	for _, s := range known {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = strings.ReplaceAll(out, s, redactedPlaceholder)
	}
	return out
}
