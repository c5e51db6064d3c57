package session

import (
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/ternarybob/claviger/internal/models"
)

// attachAuth sets the cookie header and the platform-specific auth headers.
// Each platform couples its session cookie to a second secret: Slack wants
// the xoxc client token as a bearer, LinkedIn and the others derive a CSRF
// header from a cookie value.
func attachAuth(req *http.Request, integration string, cred *models.SessionCredential) {
	if cookie := cookieHeader(cred.Cookies); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	switch integration {
	case "slack":
		req.Header.Set("Authorization", "Bearer "+cred.Tokens["xoxc_token"])
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}

	case "linkedin":
		req.Header.Set("Csrf-Token", cred.CSRFToken)
		req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
		req.Header.Set("X-Li-Lang", "en_US")
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/vnd.linkedin.normalized+json+2.1")
		}
		req.Header.Set("Referer", "https://www.linkedin.com/feed/")
		req.Header.Set("Origin", "https://www.linkedin.com")
		req.Header.Set("Sec-Fetch-Dest", "empty")
		req.Header.Set("Sec-Fetch-Mode", "cors")
		req.Header.Set("Sec-Fetch-Site", "same-origin")

	case "instagram":
		req.Header.Set("X-CSRFToken", cred.CSRFToken)
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}
		req.Header.Set("Referer", "https://www.instagram.com/")

	case "canvas":
		req.Header.Set("X-CSRF-Token", cred.CSRFToken)
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}
	}
}

// cookieHeader renders the cookie map deterministically so identical
// credentials produce identical requests.
func cookieHeader(cookies map[string]string) string {
	if len(cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(cookies[name])
	}
	return b.String()
}

// readBody drains the response, bounded to keep a misbehaving platform from
// exhausting memory.
func readBody(resp *http.Response) ([]byte, error) {
	const maxBody = 10 << 20
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}
