package store

import (
	"context"
	"testing"

	"podium/api/internal/sharing"
)

// TestCardRanksStayDenseAcrossDeleteAndReorder drives the SQL renumber
// paths end to end: deleting a middle card re-packs the survivors and a
// reorder rewrites every rank, with ranks exactly 1..n afterwards both
// times. Requires a running Postgres with migrations applied; skipped in
// short mode.
func TestCardRanksStayDenseAcrossDeleteAndReorder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	s := NewPostgresStore(db)

	boardID := "brd-rank-density-test"
	t.Cleanup(func() { _ = s.PurgeBoard(context.Background(), boardID) })
	_ = s.PurgeBoard(ctx, boardID)

	err = s.InsertBoard(ctx, Board{
		ID:      boardID,
		OwnerID: "owner-test",
		Name:    "Rank Density Test",
		Sharing: sharing.Policy{Visibility: sharing.VisibilityPrivate},
	})
	if err != nil {
		t.Fatalf("insert board: %v", err)
	}

	names := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	cardIDs := make([]string, 0, len(names))
	for i, name := range names {
		card, err := s.CreateCard(ctx, Card{
			ID:      "crd-density-" + name,
			BoardID: boardID,
			Name:    name,
		})
		if err != nil {
			t.Fatalf("create card %s: %v", name, err)
		}
		if card.Rank != i+1 {
			t.Fatalf("card %s created at rank %d, want %d", name, card.Rank, i+1)
		}
		cardIDs = append(cardIDs, card.ID)
	}

	// Delete the middle card; the survivors must re-pack to 1..4 in order.
	removed, err := s.DeleteCardAndRenumber(ctx, "crd-density-charlie")
	if err != nil {
		t.Fatalf("delete card: %v", err)
	}
	if !removed {
		t.Fatal("delete reported nothing removed")
	}
	assertDenseRanks(t, ctx, s, boardID, []string{
		"crd-density-alpha", "crd-density-bravo", "crd-density-delta", "crd-density-echo",
	})

	// Reorder: move the tail card to the front.
	cardIDs = []string{"crd-density-echo", "crd-density-alpha", "crd-density-bravo", "crd-density-delta"}
	if err := s.ApplyCardOrder(ctx, boardID, cardIDs); err != nil {
		t.Fatalf("apply card order: %v", err)
	}
	assertDenseRanks(t, ctx, s, boardID, cardIDs)
}

// assertDenseRanks loads the board's cards and requires rank i+1 at
// position i with the expected id, so ranks are a permutation of 1..n
// and the relative order matches.
func assertDenseRanks(t *testing.T, ctx context.Context, s *PostgresStore, boardID string, wantIDs []string) {
	t.Helper()

	cards, err := s.ListCards(ctx, boardID)
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}
	if len(cards) != len(wantIDs) {
		t.Fatalf("got %d cards, want %d", len(cards), len(wantIDs))
	}
	for i, card := range cards {
		if card.Rank != i+1 {
			t.Fatalf("rank at position %d is %d, want %d (ranks not dense)", i, card.Rank, i+1)
		}
		if card.ID != wantIDs[i] {
			t.Fatalf("card at rank %d is %s, want %s", i+1, card.ID, wantIDs[i])
		}
	}
}
