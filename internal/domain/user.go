package domain

import "time"

// Role represents the platform role of a user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePM     Role = "pm"
	RoleHR     Role = "hr"
	RoleMember Role = "member"
)

// IsPrivileged returns true for roles whose visibility is unrestricted.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin || r == RolePM
}

// User represents a platform user.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	Token     string
	IsActive  bool
	CreatedAt time.Time
}

// Capability is a per-track permission token.
type Capability string

const (
	CapabilityView   Capability = "view"
	CapabilityCreate Capability = "create"
	CapabilityEdit   Capability = "edit"
	CapabilityDelete Capability = "delete"
)

// TrackPermission grants a set of capabilities to one user for one track.
type TrackPermission struct {
	UserID       string
	TrackID      string
	Capabilities []Capability
	GrantedAt    time.Time
}

// Has checks whether the grant includes the given capability.
func (p *TrackPermission) Has(c Capability) bool {
	for _, got := range p.Capabilities {
		if got == c {
			return true
		}
	}
	return false
}

// Actor is the authenticated caller of a core operation: identity, role and
// the track ids the caller holds grants for. The visibility predicate is a
// pure function of this value.
type Actor struct {
	ID          string
	Role        Role
	TrackGrants []string
}

// HasTrackGrant checks whether the actor holds any grant for the given track.
func (a Actor) HasTrackGrant(trackID string) bool {
	for _, id := range a.TrackGrants {
		if id == trackID {
			return true
		}
	}
	return false
}

// Track is a top-level organizational work-stream grouping.
type Track struct {
	ID        string
	Name      string
	Code      string
	CreatedAt time.Time
}
