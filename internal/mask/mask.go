// Package mask redacts credentials from strings and structured values
// before they reach logs or outbound notification payloads.
package mask

import (
	"regexp"
	"strings"
)

const redacted = "***REDACTED***"

// patterns are evaluated in order; each replaces the sensitive portion
// of a match with the redaction marker.
var patterns = []*regexp.Regexp{
	// GitHub tokens (classic and fine-grained)
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{20,}`),
	// Anthropic / OpenAI style API keys
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{32,}`),
	// Slack tokens and webhook URLs
	regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`https://hooks\.slack\.com/services/[A-Za-z0-9/]+`),
	// Discord webhook URLs
	regexp.MustCompile(`https://discord(?:app)?\.com/api/webhooks/[0-9]+/[A-Za-z0-9_-]+`),
	// AWS access keys
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// Bearer headers
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{16,}=*`),
}

// keyPattern matches map keys whose values should be redacted wholesale.
var keyPattern = regexp.MustCompile(`(?i)(token|secret|password|passwd|api[_-]?key|webhook[_-]?url|authorization)`)

// String returns s with any recognized credential material redacted.
func String(s string) string {
	for _, re := range patterns {
		s = re.ReplaceAllString(s, redacted)
	}
	return s
}

// Strings redacts every element of ss, returning a new slice.
func Strings(ss []string) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = String(s)
	}
	return out
}

// Map returns a copy of m with sensitive keys fully redacted and all
// string values scanned for embedded credentials. Nested maps and
// slices are handled recursively.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if keyPattern.MatchString(k) {
			out[k] = redacted
			continue
		}
		out[k] = value(v)
	}
	return out
}

func value(v any) any {
	switch t := v.(type) {
	case string:
		return String(t)
	case map[string]any:
		return Map(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = value(e)
		}
		return out
	case []string:
		return Strings(t)
	default:
		return v
	}
}

// Contains reports whether s carries the redaction marker, meaning the
// masker recognized and replaced credential material. The doctor command
// uses it to confirm configured webhook URLs won't leak into logs.
func Contains(s string) bool {
	return strings.Contains(s, redacted)
}
