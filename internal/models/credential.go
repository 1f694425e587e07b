package models

import "time"

// Credential is the locally cached assessor session. The kiosk treats itself
// as authenticated only when both identifier and display name are present.
type Credential struct {
	AssessorID string    `json:"assessor_id"`
	Name       string    `json:"name"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

// Authenticated reports whether the cached session is usable.
func (c *Credential) Authenticated() bool {
	return c != nil && c.AssessorID != "" && c.Name != ""
}
