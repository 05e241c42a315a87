package observability

import (
	"strings"
	"unicode"
)

// Values logged from request data pass through here first: control characters
// would let a crafted header forge extra log lines, and unbounded identifiers
// bloat entries.
func clampLogValue(value string, max int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	if runes := []rune(cleaned); len(runes) > max {
		cleaned = string(runes[:max])
	}
	return cleaned
}

func sanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clampLogValue(route, 180)
}

func sanitizeMethod(method string) string {
	return clampLogValue(method, 10)
}

func sanitizeUserID(uid string) string {
	return clampLogValue(uid, 64)
}
