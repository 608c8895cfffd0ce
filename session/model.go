package session

import "time"

// Record is the authoritative server-side state for one login session.
// RefreshVersion is the replay detector: a refresh token is only
// honored when its embedded version equals the stored one exactly.
type Record struct {
	UserID   string
	Username string
	Role     string

	// Permissions, when non-nil, overrides role-derived permissions at
	// verification time. Set for API-key grants, nil for normal logins.
	Permissions []string

	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastAccessed time.Time

	RefreshVersion uint32
}

func (r *Record) expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

func (r *Record) clone() Record {
	out := *r
	// Preserves the nil-versus-empty distinction: an empty grant means
	// no permissions, a nil one means role-derived.
	if r.Permissions != nil {
		out.Permissions = make([]string, len(r.Permissions))
		copy(out.Permissions, r.Permissions)
	}
	return out
}
