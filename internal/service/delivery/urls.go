package delivery

import (
	"net/url"
	"strings"
)

// UnsubscribeURL returns <base>/unsubscribe?token=<token>.
func UnsubscribeURL(base, token string) string {
	return strings.TrimRight(base, "/") + "/unsubscribe?token=" + url.QueryEscape(token)
}

// PreferencesURL derives the preferences link from an unsubscribe link. Both
// carry the same token.
func PreferencesURL(unsubscribeURL string) string {
	return strings.Replace(unsubscribeURL, "/unsubscribe", "/preferences", 1)
}
