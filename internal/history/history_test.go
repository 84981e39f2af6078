package history

import (
	"reflect"
	"testing"
)

func snapshot(episode int, entries ...RankingEntry) Snapshot {
	return Snapshot{Episode: episode, Rankings: entries}
}

func entry(cardID string, rank int) RankingEntry {
	return RankingEntry{CardID: cardID, CardName: cardID, Rank: rank}
}

func TestCardTrajectoryAcrossEpisodes(t *testing.T) {
	cards := []Card{{ID: "a", Name: "Alpha", Rank: 1}}
	snapshots := []Snapshot{
		snapshot(2, entry("a", 2)),
		snapshot(1, entry("a", 3)),
		snapshot(3, entry("a", 1)),
	}

	trajectory, ok := CardTrajectory(cards, snapshots, "a")
	if !ok {
		t.Fatal("expected trajectory for current card")
	}

	if len(trajectory.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(trajectory.Points))
	}
	// Episodes walk in ascending order regardless of input order.
	wantRanks := []int{3, 2, 1}
	for i, point := range trajectory.Points {
		if point.Episode != i+1 {
			t.Errorf("point %d: expected episode %d, got %d", i, i+1, point.Episode)
		}
		if point.Rank == nil || *point.Rank != wantRanks[i] {
			t.Errorf("point %d: expected rank %d, got %v", i, wantRanks[i], point.Rank)
		}
	}
	if trajectory.Summary != "3→2→1" {
		t.Errorf("expected summary 3→2→1, got %q", trajectory.Summary)
	}
}

func TestCardTrajectoryAbsentEpisodes(t *testing.T) {
	cards := []Card{{ID: "b", Name: "Beta", Rank: 2}}
	snapshots := []Snapshot{
		snapshot(1, entry("a", 1)),
		snapshot(2, entry("a", 1), entry("b", 2)),
	}

	trajectory, ok := CardTrajectory(cards, snapshots, "b")
	if !ok {
		t.Fatal("expected trajectory for current card")
	}
	if trajectory.Points[0].Rank != nil {
		t.Error("expected nil rank for episode the card missed")
	}
	if trajectory.Summary != "-→2" {
		t.Errorf("expected summary -→2, got %q", trajectory.Summary)
	}
}

func TestCardTrajectoryNeverSnapshotted(t *testing.T) {
	cards := []Card{{ID: "new", Name: "Newcomer", Rank: 1}}
	snapshots := []Snapshot{
		snapshot(1, entry("a", 1)),
		snapshot(2, entry("a", 1)),
	}

	trajectory, ok := CardTrajectory(cards, snapshots, "new")
	if !ok {
		t.Fatal("expected trajectory for current card")
	}
	if trajectory.Summary != "New" {
		t.Errorf("expected literal New summary, got %q", trajectory.Summary)
	}
}

func TestCardTrajectoryOnlyForCurrentCards(t *testing.T) {
	cards := []Card{{ID: "a", Name: "Alpha", Rank: 1}}
	snapshots := []Snapshot{snapshot(1, entry("gone", 1))}

	if _, ok := CardTrajectory(cards, snapshots, "gone"); ok {
		t.Error("expected no trajectory for a card no longer on the board")
	}
}

func TestAllTrajectoriesKeepsCardOrder(t *testing.T) {
	// Cards arrive in their own order, deliberately not rank order.
	cards := []Card{
		{ID: "b", Name: "Beta", Rank: 2},
		{ID: "a", Name: "Alpha", Rank: 1},
	}
	snapshots := []Snapshot{snapshot(1, entry("a", 1), entry("b", 2))}

	trajectories := AllTrajectories(cards, snapshots)

	got := []string{trajectories[0].CardID, trajectories[1].CardID}
	if !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("expected input order preserved, got %v", got)
	}
}

func TestMovementsAgainstBaseline(t *testing.T) {
	current := []Card{
		{ID: "a", Name: "Alpha", Rank: 1},
		{ID: "b", Name: "Beta", Rank: 2},
	}
	baseline := snapshot(1, entry("a", 3), entry("b", 2))

	movements := Movements(current, &baseline)

	if len(movements) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(movements))
	}
	// a went from rank 3 to rank 1: improved by 2.
	if movements[0].Movement == nil || *movements[0].Movement != 2 {
		t.Errorf("expected movement 2 for a, got %v", movements[0].Movement)
	}
	if movements[1].Movement == nil || *movements[1].Movement != 0 {
		t.Errorf("expected movement 0 for b, got %v", movements[1].Movement)
	}
}

func TestMovementsNewCard(t *testing.T) {
	current := []Card{{ID: "n", Name: "Newcomer", Rank: 1}}
	baseline := snapshot(1, entry("a", 1))

	movements := Movements(current, &baseline)

	got := movements[0]
	if !got.IsNew {
		t.Error("expected isNew for card missing from baseline")
	}
	if got.Movement != nil || got.BaselineRank != nil {
		t.Error("expected nil movement and baseline rank for new card")
	}
}

func TestMovementsNilBaseline(t *testing.T) {
	current := []Card{{ID: "a", Name: "Alpha", Rank: 1}}

	movements := Movements(current, nil)

	got := movements[0]
	if got.IsNew {
		t.Error("isNew must stay false when there is no baseline at all")
	}
	if got.Movement != nil {
		t.Error("expected nil movement without a baseline")
	}
}

func TestMovementsRemovedCards(t *testing.T) {
	current := []Card{{ID: "b", Name: "Beta", Rank: 1}}
	baseline := snapshot(1, entry("a", 1), entry("b", 2))

	movements := Movements(current, &baseline)

	if len(movements) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(movements))
	}
	removed := movements[1]
	if !removed.IsRemoved {
		t.Fatal("expected removed entry appended at the end")
	}
	if removed.CurrentRank != RemovedRank {
		t.Errorf("expected sentinel rank %d, got %d", RemovedRank, removed.CurrentRank)
	}
	if removed.BaselineRank == nil || *removed.BaselineRank != 1 {
		t.Errorf("expected historical baseline rank 1, got %v", removed.BaselineRank)
	}
	if removed.Movement != nil {
		t.Error("expected nil movement for removed card")
	}
}

func TestMovementsOrderedByCurrentRank(t *testing.T) {
	current := []Card{
		{ID: "c", Name: "Gamma", Rank: 3},
		{ID: "a", Name: "Alpha", Rank: 1},
		{ID: "b", Name: "Beta", Rank: 2},
	}

	movements := Movements(current, nil)

	for i, want := range []string{"a", "b", "c"} {
		if movements[i].CardID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, movements[i].CardID)
		}
	}
}
