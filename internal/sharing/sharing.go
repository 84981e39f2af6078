// Package sharing decides who can see a board. It is a pure predicate over
// the board's sharing policy and the viewer's relationship to the owner;
// identity and friendship data come from the caller.
package sharing

type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityFriends  Visibility = "friends"
	VisibilitySpecific Visibility = "specific"
	VisibilityPublic   Visibility = "public"
)

// Policy is the sharing configuration attached to a board. PublicLinkID is
// minted the first time the public link is enabled and stays stable after
// that, even across disable/enable cycles. LinkPasswordHash is a bcrypt
// hash; empty means no password on the link.
type Policy struct {
	Visibility        Visibility `json:"visibility"`
	AllowedFriends    []string   `json:"allowedFriends,omitempty"`
	PublicLinkEnabled bool       `json:"publicLinkEnabled"`
	PublicLinkID      string     `json:"publicLinkId,omitempty"`
	LinkPasswordHash  string     `json:"linkPasswordHash,omitempty"`
}

func Normalize(visibility string) Visibility {
	switch Visibility(visibility) {
	case VisibilityPrivate, VisibilityFriends, VisibilitySpecific, VisibilityPublic:
		return Visibility(visibility)
	default:
		return VisibilityPrivate
	}
}

// CanView reports whether viewerID may see a board owned by ownerID under
// the given policy. viewerFriendIDs is the viewer's own friend set, used
// only for the "friends" visibility.
func CanView(ownerID string, policy Policy, viewerID string, viewerFriendIDs []string) bool {
	if viewerID == ownerID {
		return true
	}
	switch policy.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityFriends:
		return contains(viewerFriendIDs, ownerID)
	case VisibilitySpecific:
		return contains(policy.AllowedFriends, viewerID)
	default:
		return false
	}
}

// BoardRef is the minimal board shape the fold helpers need.
type BoardRef struct {
	BoardID string
	OwnerID string
	Policy  Policy
}

func FilterVisible(boards []BoardRef, viewerID string, viewerFriendIDs []string) []BoardRef {
	visible := make([]BoardRef, 0, len(boards))
	for _, ref := range boards {
		if CanView(ref.OwnerID, ref.Policy, viewerID, viewerFriendIDs) {
			visible = append(visible, ref)
		}
	}
	return visible
}

// SharedCountByFriend counts, per owner, how many of their boards the
// viewer can see. Owners with nothing visible are absent from the map.
func SharedCountByFriend(boards []BoardRef, viewerID string, viewerFriendIDs []string) map[string]int {
	counts := make(map[string]int)
	for _, ref := range FilterVisible(boards, viewerID, viewerFriendIDs) {
		counts[ref.OwnerID]++
	}
	return counts
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
