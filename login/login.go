// Package login provides lms.LoginDriver implementations for Canvas-style
// username/password login pages.
package login

import (
	"net/url"
	"strings"
)

// Canvas login page form field and element identifiers.
const (
	loginPath         = "/login/canvas"
	usernameFieldID   = "pseudonym_session_unique_id"
	passwordFieldID   = "pseudonym_session_password"
	usernameFieldName = "pseudonym_session[unique_id]"
	passwordFieldName = "pseudonym_session[password]"
	dashboardLinkID   = "global_nav_dashboard_link"
	submitSelector    = "button[type=submit]"
)

// loggedInURL reports whether a page URL is one only a logged-in user reaches.
func loggedInURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.Contains(u.Path, "/dashboard") || strings.Contains(u.Path, "/courses")
}

func loginURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + loginPath
}
