package remote

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"podium/api/internal/sharing"
	"podium/api/internal/syncer"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func boardRecord(id, name string) syncer.BoardRecord {
	return syncer.BoardRecord{
		ID:        id,
		OwnerID:   "owner-1",
		Name:      name,
		Sharing:   sharing.Policy{Visibility: sharing.VisibilityFriends},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestPushAndFetchBoards(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	records := []syncer.BoardRecord{
		boardRecord("b1", "Season 12 Queens"),
		boardRecord("b2", "Movies 2026"),
	}

	if err := store.PushBoards(ctx, "owner-1", records); err != nil {
		t.Fatalf("PushBoards failed: %v", err)
	}

	fetched, err := store.FetchBoards(ctx, "owner-1")
	if err != nil {
		t.Fatalf("FetchBoards failed: %v", err)
	}
	if len(fetched) != 2 {
		t.Fatalf("expected 2 records, got %d", len(fetched))
	}

	byID := make(map[string]syncer.BoardRecord, len(fetched))
	for _, record := range fetched {
		byID[record.ID] = record
	}
	if byID["b1"].Name != "Season 12 Queens" {
		t.Errorf("unexpected name for b1: %q", byID["b1"].Name)
	}
	if byID["b2"].Sharing.Visibility != sharing.VisibilityFriends {
		t.Errorf("sharing policy lost in roundtrip: %+v", byID["b2"].Sharing)
	}
}

func TestFetchBoardsEmptyOwner(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	fetched, err := store.FetchBoards(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("FetchBoards failed: %v", err)
	}
	if len(fetched) != 0 {
		t.Errorf("expected empty collection, got %d records", len(fetched))
	}
}

func TestPushOverwritesExistingRecord(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.PushBoards(ctx, "owner-1", []syncer.BoardRecord{boardRecord("b1", "before")}); err != nil {
		t.Fatalf("first PushBoards failed: %v", err)
	}
	if err := store.PushBoards(ctx, "owner-1", []syncer.BoardRecord{boardRecord("b1", "after")}); err != nil {
		t.Fatalf("second PushBoards failed: %v", err)
	}

	fetched, err := store.FetchBoards(ctx, "owner-1")
	if err != nil {
		t.Fatalf("FetchBoards failed: %v", err)
	}
	if len(fetched) != 1 || fetched[0].Name != "after" {
		t.Errorf("expected single overwritten record, got %+v", fetched)
	}
}

func TestFetchSkipsDanglingIndexEntries(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.PushBoards(ctx, "owner-1", []syncer.BoardRecord{boardRecord("b1", "kept")}); err != nil {
		t.Fatalf("PushBoards failed: %v", err)
	}
	// Simulate a record lost after indexing.
	s.SAdd("podium:boards:owner-1", "ghost")

	fetched, err := store.FetchBoards(ctx, "owner-1")
	if err != nil {
		t.Fatalf("FetchBoards failed: %v", err)
	}
	if len(fetched) != 1 || fetched[0].ID != "b1" {
		t.Errorf("expected dangling id skipped, got %+v", fetched)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.PushBoards(ctx, "owner-1", []syncer.BoardRecord{boardRecord("b1", "mine")}); err != nil {
		t.Fatalf("PushBoards failed: %v", err)
	}

	fetched, err := store.FetchBoards(ctx, "owner-2")
	if err != nil {
		t.Fatalf("FetchBoards failed: %v", err)
	}
	if len(fetched) != 0 {
		t.Errorf("expected no records for another owner, got %d", len(fetched))
	}
}
