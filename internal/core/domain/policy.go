package domain

import "strings"

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID   string
	Role Role
}

// Owned is implemented by every resource with a single owning principal.
type Owned interface {
	OwnerID() string
}

// Privacy classifies who may read an owned resource.
type Privacy string

const (
	PrivacyPrivate Privacy = "private"
	PrivacyFriends Privacy = "friends"
	PrivacyPublic  Privacy = "public"
)

// ParsePrivacy normalizes the supplied value into a known privacy level.
func ParsePrivacy(value string) (Privacy, bool) {
	p := Privacy(strings.ToLower(strings.TrimSpace(value)))
	return p, p.Valid()
}

// Valid reports whether the privacy level is known.
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPrivate, PrivacyFriends, PrivacyPublic:
		return true
	}
	return false
}

// IsOwner reports whether the principal owns a resource with the given owner id.
func IsOwner(p *Principal, ownerID string) bool {
	return p != nil && p.ID != "" && p.ID == ownerID
}

// CanMutate is the single rule guarding every update and delete of an owned
// resource: the owner, or a principal holding an elevated role.
func CanMutate(p *Principal, ownerID string) bool {
	if p == nil || p.ID == "" {
		return false
	}
	return p.ID == ownerID || p.Role.IsElevated()
}

// CanView applies the read-path privacy rule. A nil principal is an anonymous reader.
func CanView(p *Principal, ownerID string, privacy Privacy) bool {
	if CanMutate(p, ownerID) {
		return true
	}
	switch privacy {
	case PrivacyPublic:
		return true
	case PrivacyFriends:
		return p != nil && p.ID != ""
	default:
		return false
	}
}

// SeesOwnerFields reports whether owner-only fields may be returned to the principal.
func SeesOwnerFields(p *Principal, ownerID string) bool {
	return CanMutate(p, ownerID)
}

// VisibleScopes lists the privacy levels readable by a principal that does not own the resource.
func VisibleScopes(p *Principal) []Privacy {
	if p == nil || p.ID == "" {
		return []Privacy{PrivacyPublic}
	}
	return []Privacy{PrivacyPublic, PrivacyFriends}
}
