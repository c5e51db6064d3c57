package session

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// isAuthRejection detects a platform refusing the session. A stale session
// must not be retried against the same endpoint; it will not self-heal.
// Signals: a 401/403, a redirect to a login page, or an HTML login form
// served where JSON was expected.
func isAuthRejection(resp *http.Response, body []byte) bool {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	case http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect:
		loc := strings.ToLower(resp.Header.Get("Location"))
		return strings.Contains(loc, "login") ||
			strings.Contains(loc, "signin") ||
			strings.Contains(loc, "checkpoint") ||
			strings.Contains(loc, "challenge")
	}

	if resp.StatusCode != http.StatusOK {
		return false
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		return false
	}

	// A 200 HTML page on an API endpoint is usually an interstitial login
	// page. Confirm by looking for a password form before declaring the
	// session dead.
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find(`form input[type="password"]`).Length() > 0
}
