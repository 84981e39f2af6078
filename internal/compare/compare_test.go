package compare

import "testing"

func intp(v int) *int { return &v }

func rankedList(ids ...string) []Item {
	items := make([]Item, 0, len(ids))
	for i, id := range ids {
		items = append(items, Item{ID: id, Name: id, Rank: intp(i + 1)})
	}
	return items
}

func TestAgreementIdenticalRankings(t *testing.T) {
	yours := rankedList("a", "b", "c", "d")
	friends := rankedList("a", "b", "c", "d")

	if got := Agreement(yours, friends); got != 100 {
		t.Errorf("expected 100 for identical rankings, got %d", got)
	}
}

func TestAgreementDisjointIDs(t *testing.T) {
	yours := rankedList("a", "b")
	friends := rankedList("x", "y")

	if got := Agreement(yours, friends); got != 0 {
		t.Errorf("expected 0 for disjoint id sets, got %d", got)
	}
}

func TestAgreementEmptySides(t *testing.T) {
	if got := Agreement(nil, rankedList("a")); got != 0 {
		t.Errorf("expected 0 for empty left side, got %d", got)
	}
	if got := Agreement(rankedList("a"), nil); got != 0 {
		t.Errorf("expected 0 for empty right side, got %d", got)
	}
}

func TestAgreementSwappedPair(t *testing.T) {
	yours := []Item{{ID: "x", Rank: intp(1)}, {ID: "y", Rank: intp(2)}}
	friends := []Item{{ID: "x", Rank: intp(2)}, {ID: "y", Rank: intp(1)}}

	// normalizer = 2, each score = 1 - 1/2 = 0.5, mean 0.5 -> 50
	if got := Agreement(yours, friends); got != 50 {
		t.Errorf("expected 50, got %d", got)
	}
}

func TestAgreementDropsUnrankedItems(t *testing.T) {
	yours := []Item{
		{ID: "a", Rank: intp(1)},
		{ID: "b", Rank: intp(2)},
		{ID: "c", Rank: nil},
	}
	friends := []Item{
		{ID: "a", Rank: intp(1)},
		{ID: "b", Rank: intp(2)},
		{ID: "c", Rank: nil},
	}

	// The unranked item must not dilute the normalizer or the mean.
	if got := Agreement(yours, friends); got != 100 {
		t.Errorf("expected 100 after dropping unranked items, got %d", got)
	}
}

func TestAgreementCountBasedNormalizer(t *testing.T) {
	// Five ranked on one side, two on the other: normalizer is 5 even
	// though the common ranks only reach 2.
	yours := rankedList("a", "b", "c", "d", "e")
	friends := []Item{{ID: "a", Rank: intp(2)}, {ID: "b", Rank: intp(1)}}

	// common: a |1-2|=1 -> 1-1/5=0.8; b |2-1|=1 -> 0.8; mean 0.8 -> 80
	if got := Agreement(yours, friends); got != 80 {
		t.Errorf("expected 80, got %d", got)
	}
}

func TestAgreementAlwaysInRange(t *testing.T) {
	yours := []Item{{ID: "a", Rank: intp(1)}, {ID: "b", Rank: intp(50)}}
	friends := []Item{{ID: "a", Rank: intp(50)}, {ID: "b", Rank: intp(1)}}

	got := Agreement(yours, friends)
	if got < 0 || got > 100 {
		t.Errorf("agreement %d outside [0,100]", got)
	}
	// |1-50| = 49 > normalizer 2, so both scores clamp at 0.
	if got != 0 {
		t.Errorf("expected clamped score 0, got %d", got)
	}
}

func TestAlignUnionAndOrdering(t *testing.T) {
	yours := []Item{
		{ID: "a", Name: "Alpha", Rank: intp(1)},
		{ID: "b", Name: "Beta", Rank: intp(2)},
		{ID: "only-yours", Name: "Mine", Rank: intp(3)},
	}
	friends := []Item{
		{ID: "b", Name: "Beta", Rank: intp(1)},
		{ID: "a", Name: "Alpha", Rank: intp(2)},
		{ID: "only-theirs", Name: "Theirs", Rank: intp(3)},
	}

	rows := Align(yours, friends)
	if len(rows) != 4 {
		t.Fatalf("expected 4 union rows, got %d", len(rows))
	}

	// a and b average 1.5 each (tie breaks by id), then the one-sided rows
	// at rank 3 each.
	wantOrder := []string{"a", "b", "only-theirs", "only-yours"}
	for i, want := range wantOrder {
		if rows[i].ID != want {
			t.Errorf("row %d: expected %s, got %s", i, want, rows[i].ID)
		}
	}

	if rows[0].YourRank == nil || *rows[0].YourRank != 1 {
		t.Errorf("expected yourRank 1 for a, got %v", rows[0].YourRank)
	}
	if rows[0].FriendRank == nil || *rows[0].FriendRank != 2 {
		t.Errorf("expected friendRank 2 for a, got %v", rows[0].FriendRank)
	}
	for _, row := range rows {
		if row.ID == "only-yours" && row.FriendRank != nil {
			t.Error("expected nil friendRank for one-sided row")
		}
		if row.ID == "only-theirs" && row.YourRank != nil {
			t.Error("expected nil yourRank for one-sided row")
		}
	}
}

func TestAlignUnrankedRowsSortLast(t *testing.T) {
	yours := []Item{
		{ID: "ranked", Rank: intp(1)},
		{ID: "shelf", Rank: nil},
	}
	friends := []Item{
		{ID: "shelf", Rank: nil},
	}

	rows := Align(yours, friends)
	if rows[len(rows)-1].ID != "shelf" {
		t.Errorf("expected unranked row last, got %s", rows[len(rows)-1].ID)
	}
}

func TestIdentityID(t *testing.T) {
	if got := IdentityID("tpl-item-7", "card-1"); got != "tpl-item-7" {
		t.Errorf("expected template item id, got %s", got)
	}
	if got := IdentityID("", "card-1"); got != "card-1" {
		t.Errorf("expected card id fallback, got %s", got)
	}
}
