package sharing

import (
	"reflect"
	"testing"
)

func TestCanViewMatrix(t *testing.T) {
	cases := []struct {
		name      string
		policy    Policy
		viewerID  string
		friendIDs []string
		want      bool
	}{
		{"owner sees private", Policy{Visibility: VisibilityPrivate}, "owner", nil, true},
		{"stranger blocked on private", Policy{Visibility: VisibilityPrivate}, "u2", []string{"owner"}, false},
		{"friend blocked on private", Policy{Visibility: VisibilityPrivate}, "u2", []string{"owner"}, false},
		{"anyone sees public", Policy{Visibility: VisibilityPublic}, "u9", nil, true},
		{"owner sees public", Policy{Visibility: VisibilityPublic}, "owner", nil, true},
		{"friend sees friends-only", Policy{Visibility: VisibilityFriends}, "u2", []string{"owner"}, true},
		{"non-friend blocked on friends-only", Policy{Visibility: VisibilityFriends}, "u2", []string{"u3"}, false},
		{"empty friend set blocked on friends-only", Policy{Visibility: VisibilityFriends}, "u2", nil, false},
		{"allowed viewer sees specific", Policy{Visibility: VisibilitySpecific, AllowedFriends: []string{"u2"}}, "u2", nil, true},
		{"other viewer blocked on specific", Policy{Visibility: VisibilitySpecific, AllowedFriends: []string{"u2"}}, "u3", nil, false},
		{"friendship does not grant specific", Policy{Visibility: VisibilitySpecific, AllowedFriends: []string{"u2"}}, "u3", []string{"owner"}, false},
		{"owner sees specific without being listed", Policy{Visibility: VisibilitySpecific, AllowedFriends: []string{"u2"}}, "owner", nil, true},
		{"unknown visibility treated as private", Policy{Visibility: "everyone"}, "u2", []string{"owner"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CanView("owner", tc.policy, tc.viewerID, tc.friendIDs)
			if got != tc.want {
				t.Errorf("CanView = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("public"); got != VisibilityPublic {
		t.Errorf("expected public, got %s", got)
	}
	if got := Normalize(""); got != VisibilityPrivate {
		t.Errorf("expected private default, got %s", got)
	}
	if got := Normalize("FRIENDS"); got != VisibilityPrivate {
		t.Errorf("expected private for unknown casing, got %s", got)
	}
}

func TestFilterVisible(t *testing.T) {
	boards := []BoardRef{
		{BoardID: "b1", OwnerID: "alice", Policy: Policy{Visibility: VisibilityPublic}},
		{BoardID: "b2", OwnerID: "alice", Policy: Policy{Visibility: VisibilityPrivate}},
		{BoardID: "b3", OwnerID: "bob", Policy: Policy{Visibility: VisibilityFriends}},
		{BoardID: "b4", OwnerID: "carol", Policy: Policy{Visibility: VisibilitySpecific, AllowedFriends: []string{"viewer"}}},
	}

	visible := FilterVisible(boards, "viewer", []string{"bob"})

	ids := make([]string, 0, len(visible))
	for _, ref := range visible {
		ids = append(ids, ref.BoardID)
	}
	want := []string{"b1", "b3", "b4"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected visible boards %v, got %v", want, ids)
	}
}

func TestSharedCountByFriend(t *testing.T) {
	boards := []BoardRef{
		{BoardID: "b1", OwnerID: "alice", Policy: Policy{Visibility: VisibilityPublic}},
		{BoardID: "b2", OwnerID: "alice", Policy: Policy{Visibility: VisibilityFriends}},
		{BoardID: "b3", OwnerID: "alice", Policy: Policy{Visibility: VisibilityPrivate}},
		{BoardID: "b4", OwnerID: "bob", Policy: Policy{Visibility: VisibilityPrivate}},
	}

	counts := SharedCountByFriend(boards, "viewer", []string{"alice"})

	if counts["alice"] != 2 {
		t.Errorf("expected 2 visible boards from alice, got %d", counts["alice"])
	}
	if _, ok := counts["bob"]; ok {
		t.Error("expected bob absent when nothing is visible")
	}
}
