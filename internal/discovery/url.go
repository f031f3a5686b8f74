package discovery

import "strings"

// EnsureFullURL returns raw unchanged when it already carries a scheme and
// prefixes it with root otherwise.
func EnsureFullURL(raw, root string) string {
	if strings.Contains(raw, "http") {
		return raw
	}
	return root + raw
}
