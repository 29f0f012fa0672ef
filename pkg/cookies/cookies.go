// Package cookies reads and writes the first-party cookie set: the
// server-side session id plus denormalized role, email, company and
// profile-complete markers, and the tenant subdomain. In production the
// session cookie uses the __Host- prefix, which locks it to the exact
// host over HTTPS with Path=/ and no Domain attribute, so none is set.
package cookies

import (
	"net/http"
	"time"
)

const (
	sessionName       = "vd_session"
	sessionNameHost   = "__Host-vd_session"
	legacySessionName = "sessionId" // pre-rename cookie, read-only for migration

	roleName            = "vd_role"
	emailName           = "vd_email"
	companyName         = "vd_company"
	profileCompleteName = "vd_profile_complete"
	subdomainName       = "vd_subdomain"
)

// DefaultMaxAge matches the server-side session lifetime.
const DefaultMaxAge = 7 * 24 * time.Hour

// Jar knows the cookie names and attributes for one deployment mode.
type Jar struct {
	secure bool
}

// New returns a Jar. secure selects production attributes (Secure plus
// the host-locked session cookie name).
func New(secure bool) *Jar {
	return &Jar{secure: secure}
}

func (j *Jar) sessionCookieName() string {
	if j.secure {
		return sessionNameHost
	}
	return sessionName
}

// SessionID returns the session id from the request, checking the current
// name first and the legacy name for sessions issued before the rename.
// Empty string means no session cookie is present.
func (j *Jar) SessionID(r *http.Request) string {
	for _, name := range []string{j.sessionCookieName(), legacySessionName} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

func (j *Jar) set(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetSession writes the session id cookie.
func (j *Jar) SetSession(w http.ResponseWriter, sessionID string) {
	j.set(w, j.sessionCookieName(), sessionID, int(DefaultMaxAge.Seconds()))
}

// SetIdentity writes the denormalized identity markers read by the
// front end. None of them is trusted for authorization.
func (j *Jar) SetIdentity(w http.ResponseWriter, role, email, companyID string, profileComplete bool) {
	maxAge := int(DefaultMaxAge.Seconds())
	j.set(w, roleName, role, maxAge)
	j.set(w, emailName, email, maxAge)
	j.set(w, companyName, companyID, maxAge)
	complete := "false"
	if profileComplete {
		complete = "true"
	}
	j.set(w, profileCompleteName, complete, maxAge)
}

// SetSubdomain writes the tenant subdomain cookie.
func (j *Jar) SetSubdomain(w http.ResponseWriter, subdomain string) {
	j.set(w, subdomainName, subdomain, int(DefaultMaxAge.Seconds()))
}

// Clear expires the full cookie set, including the legacy session name.
// Expiry uses the same attributes as the write path so browsers match
// the original cookie.
func (j *Jar) Clear(w http.ResponseWriter) {
	for _, name := range []string{
		j.sessionCookieName(), legacySessionName,
		roleName, emailName, companyName, profileCompleteName, subdomainName,
	} {
		j.set(w, name, "", -1)
	}
}
